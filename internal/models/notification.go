package models

import "encoding/json"

// NotificationKind определяет шаблон, которым транспорт оформит сообщение.
type NotificationKind string

const (
	NotifyFreeTrialActivity NotificationKind = "free_trial_activity"
	NotifyNewOrder          NotificationKind = "new_order"
	NotifyPaymentConfirmed  NotificationKind = "payment_confirmed"
	NotifyDeliveryConfirmed NotificationKind = "delivery_confirmed"
	NotifyBroadcast         NotificationKind = "broadcast"
	NotifyPendingDigest     NotificationKind = "pending_digest"
	NotifyReply             NotificationKind = "reply"
)

// Action: кнопка, прикреплённая к уведомлению.
type Action struct {
	Kind string `json:"kind"` // confirm_delivery, confirm_payment, pay_url, view_paid_plans
	Ref  string `json:"ref"`  // ID пользователя, ID заказа или URL
}

// Notification: намерение отправить сообщение. Ядро не знает, как оно будет доставлено.
type Notification struct {
	ID          string            `json:"id"`
	Kind        NotificationKind  `json:"kind"`
	RecipientID int64             `json:"recipient_id"`
	Text        string            `json:"text,omitempty"`
	Action      *Action           `json:"action,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"` // Ответ ядра целиком для NotifyReply
}
