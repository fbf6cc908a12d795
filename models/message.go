package models

import "time"

// SenderRole identifies which seat produced a message.
type SenderRole string

const (
	RoleA SenderRole = "A"
	RoleB SenderRole = "B"
)

type Message struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	GameID     uint       `json:"game_id" gorm:"not null;index"`
	SenderRole SenderRole `json:"sender_role" gorm:"type:varchar(1);not null"`
	Content    string     `json:"content" gorm:"not null"`
	Round      int        `json:"round" gorm:"not null"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
