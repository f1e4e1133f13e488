package api

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toAPI() User {
	return User{
		ID:       m.ID,
		Username: m.Username,
		Email:    m.Email,
	}
}

type userTokenModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (userTokenModel) TableName() string { return "user_tokens" }
