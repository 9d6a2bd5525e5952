package models

import "time"

// OrderStatus статус заказа.
type OrderStatus string

const (
	// OrderPendingPayment: заказ ждёт подтверждения оплаты администратором.
	OrderPendingPayment OrderStatus = "pending_payment"
	// OrderConfirmed: оплата подтверждена, заказ удалён из списка ожидающих.
	OrderConfirmed OrderStatus = "confirmed"
)

// ElitePrefix префикс идентификатора заказа Passe de Elite.
const ElitePrefix = "passe"

// Order: заказ, ожидающий подтверждения оплаты.
type Order struct {
	ID         string      `json:"id"`
	UserID     int64       `json:"user_id"`
	Handle     string      `json:"username"`
	GameID     string      `json:"game_id"`
	TierKey    string      `json:"tier_key"`
	TierLabel  string      `json:"tier_label"`
	PriceLabel string      `json:"price_label"`
	PaymentURL string      `json:"payment_url,omitempty"`
	Elite      bool        `json:"elite"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     OrderStatus `json:"status"`
}
