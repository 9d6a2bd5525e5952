package models

// EventType тип входящего события, уже разобранного транспортом.
type EventType string

const (
	EventStart           EventType = "start"
	EventFreeTrial       EventType = "free_trial"
	EventSelectTier      EventType = "select_tier"
	EventElite           EventType = "elite"
	EventText            EventType = "text"
	EventCancel          EventType = "cancel"
	EventConfirmPayment  EventType = "confirm_payment"
	EventConfirmDelivery EventType = "confirm_delivery"
	EventAddPrincipal    EventType = "add_principal"
	EventRemovePrincipal EventType = "remove_principal"
	EventStats           EventType = "stats"
	EventLogs            EventType = "logs"
	EventBroadcast       EventType = "broadcast"
)

// Event: одно входящее событие от пользователя или администратора.
// Tier заполняется для select_tier, Text для text и broadcast,
// Ref: ссылка на заказ, пользователя или администратора для подтверждений и команд.
type Event struct {
	ID       string    `json:"id,omitempty"`
	Type     EventType `json:"type" validate:"required,oneof=start free_trial select_tier elite text cancel confirm_payment confirm_delivery add_principal remove_principal stats logs broadcast"`
	UserID   int64     `json:"user_id" validate:"required,gt=0"`
	Handle   string    `json:"username,omitempty"`
	ChatID   int64     `json:"chat_id,omitempty"`
	ChatType string    `json:"chat_type,omitempty"`
	Tier     string    `json:"tier,omitempty"`
	Text     string    `json:"text,omitempty"`
	Ref      string    `json:"ref,omitempty"`
}

// User возвращает пользователя-инициатора события.
func (e Event) User() User {
	chatID := e.ChatID
	if chatID == 0 {
		chatID = e.UserID
	}
	return User{ID: e.UserID, Handle: e.Handle, ChatID: chatID, ChatType: e.ChatType}
}
