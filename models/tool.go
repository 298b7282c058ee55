package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tool status values. Status is an explicit column; it is never encoded
// into the tool name.
const (
	StatusAvailable  = "available"
	StatusBeta       = "beta"
	StatusComingSoon = "coming_soon"
)

// Tool represents a cataloged external application surfaced on the portal
type Tool struct {
	ID          string   `gorm:"primaryKey" json:"id"`
	Name        string   `gorm:"not null;index" json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Link        *string  `json:"link"`
	Demo        *string  `json:"demo"`
	Icon        *string  `json:"icon"` // URL, or an S3 key when uploaded through the icon endpoint
	IconURL     string   `gorm:"-" json:"icon_url,omitempty"` // computed, presigned URL for uploaded icons
	Status      string   `gorm:"not null;default:'available'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Tool model
func (Tool) TableName() string {
	return "tools"
}

// BeforeCreate assigns a server-generated ID when the caller did not provide one
func (t *Tool) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ValidStatus reports whether s is one of the recognized tool statuses
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusBeta, StatusComingSoon:
		return true
	}
	return false
}
