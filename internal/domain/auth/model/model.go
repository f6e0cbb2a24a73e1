package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username         string     `gorm:"size:30;not null;uniqueIndex"`
	Email            string     `gorm:"size:254;not null;uniqueIndex"`
	PasswordHash     string     `gorm:"not null"`
	ProfilePicture   string     `gorm:"not null;default:''"`
	Bio              string     `gorm:"size:500;not null;default:''"`
	ResetTokenHash   *string    `gorm:"size:64;index"`
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime;<-:create"`
	UpdatedAt        time.Time
}

func (User) TableName() string {
	return "users"
}

// HasPendingReset reports whether a reset request is outstanding at now.
func (u User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil && now.Before(*u.ResetTokenExpiry)
}

// PublicUser is the part of a User that may leave the service.
type PublicUser struct {
	ID             uuid.UUID
	Username       string
	Email          string
	ProfilePicture string
	Bio            string
	CreatedAt      time.Time
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		CreatedAt:      u.CreatedAt,
	}
}

type Session struct {
	User      PublicUser
	Token     string
	ExpiresAt time.Time
}
