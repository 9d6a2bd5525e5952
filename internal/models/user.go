// Package models содержит доменные структуры магазина: пользователей, тарифы,
// состояние диалога, записи о пробном периоде, заказы, журнал активности,
// администраторов, входящие события и исходящие уведомления.
package models

import "time"

// DefaultHandle подставляется, когда у пользователя нет username.
const DefaultHandle = "sem username"

// User представляет пользователя мессенджера. Признак администратора
// здесь не хранится, он вычисляется через реестр администраторов.
type User struct {
	ID       int64     `json:"id"`        // Идентификатор пользователя в мессенджере
	Handle   string    `json:"username"`  // Username, может отсутствовать
	ChatID   int64     `json:"chat_id"`   // Чат для рассылок
	ChatType string    `json:"chat_type"` // Тип чата (private, group, ...)
	LastSeen time.Time `json:"last_seen"` // Время последнего взаимодействия
}

// DisplayHandle возвращает username или заглушку.
func (u User) DisplayHandle() string {
	if u.Handle == "" {
		return DefaultHandle
	}
	return u.Handle
}
