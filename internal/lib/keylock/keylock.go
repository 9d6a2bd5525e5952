// Package keylock реализует мьютекс на ключ: операции с одним ключом
// выполняются последовательно, с разными ключами параллельно.
package keylock

import "sync"

// Locker выдаёт мьютексы по строковому ключу и удаляет их, когда ими никто не пользуется.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New создаёт пустой Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock блокирует key и возвращает функцию разблокировки.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len возвращает количество ключей, которые сейчас заблокированы или ожидают блокировки.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
