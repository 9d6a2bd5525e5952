package models

import "time"

// Principal: администратор магазина. Root выдаётся при старте и не может быть удалён.
type Principal struct {
	UserID    int64     `json:"user_id"`
	GrantedBy int64     `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
	Root      bool      `json:"root"`
}
