package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupModelTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&Tool{}, &OldTool{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func TestToolTableName(t *testing.T) {
	tool := Tool{}
	assert.Equal(t, "tools", tool.TableName(), "Table name should be 'tools'")
}

func TestToolIDGeneratedOnCreate(t *testing.T) {
	db := setupModelTestDB(t)

	tool := Tool{Name: "OCR Tool"}
	err := db.Create(&tool).Error
	assert.NoError(t, err, "Creating a tool should succeed")
	assert.NotEmpty(t, tool.ID, "ID should be generated when not provided")
}

func TestToolIDPreservedWhenProvided(t *testing.T) {
	db := setupModelTestDB(t)

	tool := Tool{ID: "legacy-id-1", Name: "Translator"}
	err := db.Create(&tool).Error
	assert.NoError(t, err)
	assert.Equal(t, "legacy-id-1", tool.ID, "Provided ID should not be overwritten")
}

func TestValidStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
		valid  bool
	}{
		{"available", StatusAvailable, true},
		{"beta", StatusBeta, true},
		{"coming soon", StatusComingSoon, true},
		{"empty", "", false},
		{"unknown", "deprecated", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidStatus(tt.status))
		})
	}
}
