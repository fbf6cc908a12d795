package models

import "time"

// Guess holds one player's read on the opposing player's owner. A player
// gets a single guess per game; resubmitting replaces the previous one.
type Guess struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	GameID      uint      `json:"game_id" gorm:"not null;uniqueIndex:idx_game_guesser"`
	GuesserID   uint      `json:"guesser_id" gorm:"not null;uniqueIndex:idx_game_guesser"`
	TargetID    uint      `json:"target_id" gorm:"not null"`
	Personality string    `json:"personality"`
	Profession  string    `json:"profession"`
	Values      string    `json:"values"`
	Interests   string    `json:"interests"`
	Confidence  float64   `json:"confidence"`
	Score       *int      `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
