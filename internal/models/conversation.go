package models

// Awaiting: закрытое перечисление того, какой ввод бот ждёт от пользователя.
type Awaiting int

const (
	// AwaitNone: бот ничего не ждёт.
	AwaitNone Awaiting = iota
	// AwaitFreeTrialID: ждём игровой ID для бесплатного пробного периода.
	AwaitFreeTrialID
	// AwaitEliteID: ждём игровой ID для покупки Passe de Elite.
	AwaitEliteID
	// AwaitPaidPlanID: ждём игровой ID для выбранного платного тарифа.
	AwaitPaidPlanID
)

func (a Awaiting) String() string {
	switch a {
	case AwaitNone:
		return "none"
	case AwaitFreeTrialID:
		return "free_trial_id"
	case AwaitEliteID:
		return "elite_id"
	case AwaitPaidPlanID:
		return "paid_plan_id"
	default:
		return "unknown"
	}
}

// ConversationState: состояние диалога одного пользователя.
// Tier заполнен только для AwaitPaidPlanID.
type ConversationState struct {
	Awaiting Awaiting
	Tier     *Tier
}

// Idle возвращает пустое состояние.
func Idle() ConversationState {
	return ConversationState{Awaiting: AwaitNone}
}

// AwaitFreeTrial возвращает состояние ожидания ID для пробного периода.
func AwaitFreeTrial() ConversationState {
	return ConversationState{Awaiting: AwaitFreeTrialID}
}

// AwaitElite возвращает состояние ожидания ID для Passe de Elite.
func AwaitElite() ConversationState {
	return ConversationState{Awaiting: AwaitEliteID}
}

// AwaitPaidPlan возвращает состояние ожидания ID для тарифа tier.
func AwaitPaidPlan(tier Tier) ConversationState {
	return ConversationState{Awaiting: AwaitPaidPlanID, Tier: &tier}
}
