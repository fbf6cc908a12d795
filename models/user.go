package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the human owner behind an agent. Identity comes from the upstream
// provider; the stored tokens let the backend drive the owner's agent.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ExternalID   string         `json:"external_id" gorm:"uniqueIndex;not null"`
	Name         string         `json:"name" gorm:"not null"`
	Avatar       string         `json:"avatar"`
	AccessToken  string         `json:"-" gorm:"not null"`
	RefreshToken string         `json:"-"`
	Scopes       string         `json:"scopes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
