package model

import (
	"time"
)

// PasswordResetToken is a short-lived single-use token. Issuing a new
// token deletes any previous tokens for the same email.
type PasswordResetToken struct {
	BaseModel
	Email     string    `gorm:"type:varchar(255);index;not null" json:"email"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}

// TableName specifies the table name for PasswordResetToken model
func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
