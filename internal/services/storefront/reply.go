package storefront

import (
	"github.com/magabrotheeeer/storefront-bot/internal/models"
)

// ReplyKind определяет, каким сообщением транспорт ответит инициатору события.
type ReplyKind string

const (
	ReplyWelcome           ReplyKind = "welcome"
	ReplyAwaitingID        ReplyKind = "awaiting_id"
	ReplyAlreadyRedeemed   ReplyKind = "already_redeemed"
	ReplyUnknownTier       ReplyKind = "unknown_tier"
	ReplyInvalidID         ReplyKind = "invalid_id"
	ReplyTrialActivated    ReplyKind = "trial_activated"
	ReplyOrderCreated      ReplyKind = "order_created"
	ReplyEcho              ReplyKind = "echo"
	ReplyCancelled         ReplyKind = "cancelled"
	ReplyPaymentConfirmed  ReplyKind = "payment_confirmed"
	ReplyDeliveryConfirmed ReplyKind = "delivery_confirmed"
	ReplyPrincipalAdded    ReplyKind = "principal_added"
	ReplyPrincipalRemoved  ReplyKind = "principal_removed"
	ReplyStats             ReplyKind = "stats"
	ReplyLogs              ReplyKind = "logs"
	ReplyBroadcast         ReplyKind = "broadcast"
	ReplyAccessDenied      ReplyKind = "access_denied"
	ReplyNotFound          ReplyKind = "not_found"
	ReplyInvalidRef        ReplyKind = "invalid_ref"
	ReplyRejected          ReplyKind = "rejected"
	ReplyRateLimited       ReplyKind = "rate_limited"
)

// Действия, которые транспорт превращает в кнопки.
const (
	ActionConfirmDelivery = "confirm_delivery"
	ActionConfirmPayment  = "confirm_payment"
	ActionPayURL          = "pay_url"
	ActionViewPaidPlans   = "view_paid_plans"
)

// Reply: ответ ядра на одно событие. Заполнены только поля, относящиеся к Kind.
type Reply struct {
	Kind       ReplyKind          `json:"kind"`
	Privileged bool               `json:"privileged,omitempty"`
	Awaiting   string             `json:"awaiting,omitempty"`
	GameID     string             `json:"game_id,omitempty"`
	Text       string             `json:"text,omitempty"`
	Support    string             `json:"support,omitempty"`
	Tier       *models.Tier       `json:"tier,omitempty"`
	Tiers      []models.Tier      `json:"tiers,omitempty"`
	Order      *models.Order      `json:"order,omitempty"`
	Entry      *models.LogEntry   `json:"entry,omitempty"`
	Logs       []models.LogEntry  `json:"logs,omitempty"`
	Stats      *Stats             `json:"stats,omitempty"`
	Broadcast  *BroadcastResult   `json:"broadcast,omitempty"`
	Principals []models.Principal `json:"principals,omitempty"`
	Action     *models.Action     `json:"action,omitempty"`
}

// Stats сводка для администратора.
type Stats struct {
	Users               int    `json:"users"`
	Redemptions         int    `json:"redemptions"`
	ActivityTotal       int    `json:"activity_total"`
	ActivityDelivered   int    `json:"activity_delivered"`
	ActivityPending     int    `json:"activity_pending"`
	PendingOrders       int    `json:"pending_orders"`
	Principals          int    `json:"principals"`
	ActiveConversations int    `json:"active_conversations"`
	Backend             string `json:"backend"`
	Durable             bool   `json:"durable"`
	Uptime              string `json:"uptime"`
}

// BroadcastResult итог рассылки.
type BroadcastResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
