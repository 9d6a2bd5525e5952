// Package conversation хранит состояние диалога каждого пользователя в памяти процесса.
// После перезапуска все незавершённые диалоги сбрасываются.
package conversation

import (
	"sync"

	"github.com/magabrotheeeer/storefront-bot/internal/models"
)

const shardCount = 32

type shard struct {
	mu     sync.Mutex
	states map[int64]models.ConversationState
}

// Tracker: состояния диалогов, разбитые на шарды по ID пользователя,
// чтобы разные пользователи не ждали друг друга на одной блокировке.
type Tracker struct {
	shards [shardCount]*shard
}

// New создаёт пустой Tracker.
func New() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i] = &shard{states: make(map[int64]models.ConversationState)}
	}
	return t
}

func (t *Tracker) shard(userID int64) *shard {
	idx := userID % shardCount
	if idx < 0 {
		idx = -idx
	}
	return t.shards[idx]
}

// Begin устанавливает ожидаемый ввод. Предыдущее состояние молча перезаписывается.
func (t *Tracker) Begin(userID int64, state models.ConversationState) {
	if state.Awaiting != models.AwaitPaidPlanID {
		state.Tier = nil
	}
	s := t.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Awaiting == models.AwaitNone {
		delete(s.states, userID)
		return
	}
	s.states[userID] = state
}

// Get возвращает текущее состояние. Для неизвестного пользователя Idle.
func (t *Tracker) Get(userID int64) models.ConversationState {
	s := t.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return models.Idle()
	}
	return state
}

// Consume сбрасывает состояние после того, как ожидаемый ввод успешно обработан.
// Сброс происходит, только если состояние всё ещё expected: так более новый выбор
// пользователя не теряется.
func (t *Tracker) Consume(userID int64, expected models.Awaiting) bool {
	s := t.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok || state.Awaiting != expected {
		return false
	}
	delete(s.states, userID)
	return true
}

// Cancel сбрасывает состояние без обработки ввода.
func (t *Tracker) Cancel(userID int64) {
	s := t.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Len возвращает число пользователей с незавершённым диалогом.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.states)
		s.mu.Unlock()
	}
	return n
}
