package models

import "time"

// RedemptionRecord фиксирует использование бесплатного пробного периода.
// Для обычного пользователя создаётся не более одного раза и никогда не перезаписывается.
type RedemptionRecord struct {
	UserID     int64     `json:"user_id"`
	Handle     string    `json:"username"`
	GameID     string    `json:"game_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
	Privileged bool      `json:"is_admin"`
}
