package models

import (
	"time"
)

// User represents a portal user. The primary key is the identity
// provider's subject claim, so one row exists per provider identity.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"` // provider 'sub' claim
	Email     string    `gorm:"not null;index" json:"email"`
	Name      *string   `json:"name"`
	Picture   *string   `json:"picture"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"isAdmin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
