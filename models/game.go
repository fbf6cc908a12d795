package models

import (
	"time"

	"gorm.io/gorm"
)

type Game struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	PlayerAID    uint           `json:"player_a_id" gorm:"not null;index"`
	PlayerBID    *uint          `json:"player_b_id" gorm:"index"`
	Status       GameStatus     `json:"status" gorm:"type:varchar(16);not null;default:'WAITING';index"`
	CurrentRound int            `json:"current_round" gorm:"not null;default:0"`
	Rounds       int            `json:"rounds" gorm:"not null;default:5"`
	FinishedAt   *time.Time     `json:"finished_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	PlayerA  User      `json:"player_a,omitempty" gorm:"foreignKey:PlayerAID"`
	PlayerB  *User     `json:"player_b,omitempty" gorm:"foreignKey:PlayerBID"`
	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Guesses  []Guess   `json:"guesses,omitempty" gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

// Matched reports whether both seats are filled.
func (g *Game) Matched() bool {
	return g.PlayerBID != nil
}

// HasPlayer reports whether userID occupies either seat.
func (g *Game) HasPlayer(userID uint) bool {
	if g.PlayerAID == userID {
		return true
	}
	return g.PlayerBID != nil && *g.PlayerBID == userID
}
