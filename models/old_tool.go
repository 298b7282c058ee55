package models

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// OldTool is the legacy catalog table from the previous iteration of the
// portal. Rows encoded their status as a suffix on the name ("Foo-Beta").
// The table is read-only here; it is only consulted by the one-way
// startup import into the tools table.
type OldTool struct {
	ID          string   `gorm:"primaryKey" json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Link        *string  `json:"link"`
	Demo        *string  `json:"demo"`
	Icon        *string  `json:"icon"`
}

// TableName specifies the table name for the OldTool model
func (OldTool) TableName() string {
	return "old_tools"
}

// ParseLegacyName splits a legacy "Name-Status" tool name into a clean
// title and an explicit status. Unknown or missing suffixes leave the
// name untouched and default the status to available.
func ParseLegacyName(name string) (title string, status string) {
	idx := strings.Index(name, "-")
	if idx <= 0 || idx == len(name)-1 {
		return name, StatusAvailable
	}

	switch strings.ToLower(strings.TrimSpace(name[idx+1:])) {
	case "beta":
		return strings.TrimSpace(name[:idx]), StatusBeta
	case "coming soon", "comingsoon", "coming-soon":
		return strings.TrimSpace(name[:idx]), StatusComingSoon
	case "available":
		return strings.TrimSpace(name[:idx]), StatusAvailable
	default:
		// The suffix is part of the real name, not a status marker
		return name, StatusAvailable
	}
}

// MigrateLegacyTools imports rows from the legacy old_tools table into
// tools, translating the name-suffix status encoding into the status
// column. The import is idempotent: rows whose legacy ID already exists
// in tools are skipped, so it is safe to run on every startup.
func MigrateLegacyTools(db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(&OldTool{}) {
		return 0, nil
	}

	var legacy []OldTool
	if err := db.Find(&legacy).Error; err != nil {
		return 0, fmt.Errorf("failed to read legacy tools: %w", err)
	}

	imported := 0
	for _, old := range legacy {
		var count int64
		if err := db.Model(&Tool{}).Where("id = ?", old.ID).Count(&count).Error; err != nil {
			return imported, fmt.Errorf("failed to check existing tool %s: %w", old.ID, err)
		}
		if count > 0 {
			continue
		}

		title, status := ParseLegacyName(old.Name)
		tool := Tool{
			ID:          old.ID,
			Name:        title,
			Description: old.Description,
			Category:    old.Category,
			Price:       old.Price,
			Link:        old.Link,
			Demo:        old.Demo,
			Icon:        old.Icon,
			Status:      status,
		}
		if err := db.Create(&tool).Error; err != nil {
			return imported, fmt.Errorf("failed to import legacy tool %s: %w", old.ID, err)
		}
		imported++
	}

	if imported > 0 {
		log.Printf("Imported %d legacy tools", imported)
	}
	return imported, nil
}
