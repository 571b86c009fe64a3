package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account. RefreshToken holds the one outstanding
// rotation credential, nil when the user has no session.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	UserId       uuid.UUID
}

// Session is what a successful login hands back: the public user fields and
// the credentials destined for the cookie transport.
type Session struct {
	User   User
	Tokens TokenPair
}
