package models

import "time"

// LogKind тип события в журнале активности.
type LogKind string

const (
	// LogFreeTrial: активация бесплатного пробного периода.
	LogFreeTrial LogKind = "free_trial"
	// LogPaidOrder: подтверждённый платный заказ.
	LogPaidOrder LogKind = "paid_order"
	// LogElitePass: подтверждённая покупка Passe de Elite.
	LogElitePass LogKind = "elite_pass"
)

// LogStatus статус записи журнала. Переход возможен только pending -> delivered.
type LogStatus string

const (
	// LogPending: ждёт подтверждения доставки.
	LogPending LogStatus = "pending"
	// LogDelivered: доставка подтверждена администратором.
	LogDelivered LogStatus = "delivered"
)

// LogEntry: запись журнала активности.
type LogEntry struct {
	ID          string     `json:"id"`
	Kind        LogKind    `json:"kind"`
	UserID      int64      `json:"user_id"`
	Handle      string     `json:"username"`
	GameID      string     `json:"game_id"`
	Detail      string     `json:"detail"`
	CreatedAt   time.Time  `json:"created_at"`
	Status      LogStatus  `json:"status"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}
