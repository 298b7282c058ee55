package controllers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/openpecha/pecha-tools-api/services"
)

// CreateToolRequest represents the request body for creating a tool
type CreateToolRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Link        *string  `json:"link"`
	Demo        *string  `json:"demo"`
	Icon        *string  `json:"icon"`
	Status      *string  `json:"status"`
}

// UpdateToolRequest represents the request body for a partial tool update.
// Only fields present in the request are applied.
type UpdateToolRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Link        *string  `json:"link"`
	Demo        *string  `json:"demo"`
	Icon        *string  `json:"icon"`
	Status      *string  `json:"status"`
}

// attachIconURL fills the computed IconURL field for tools whose icon is
// an S3 key rather than an absolute URL
func attachIconURL(tool *models.Tool) {
	if tool.Icon == nil || *tool.Icon == "" {
		return
	}
	if strings.HasPrefix(*tool.Icon, "http://") || strings.HasPrefix(*tool.Icon, "https://") {
		tool.IconURL = *tool.Icon
		return
	}

	iconService := services.GetIconService()
	if iconService == nil {
		return
	}
	url, err := iconService.GetIconURL(*tool.Icon)
	if err != nil {
		log.Printf("Failed to resolve icon URL for tool %s: %v", tool.ID, err)
		return
	}
	tool.IconURL = url
}

// ListTools handles GET /api/tools - returns the whole catalog.
// The catalog is small, so there is no pagination; tools are ordered
// alphabetically with coming-soon entries last.
func ListTools(c *gin.Context) {
	db := config.GetDB()

	var tools []models.Tool
	err := db.
		Order("CASE WHEN status = 'coming_soon' THEN 1 ELSE 0 END").
		Order("name ASC").
		Find(&tools).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to load tools",
		})
		return
	}

	for i := range tools {
		attachIconURL(&tools[i])
	}

	c.JSON(http.StatusOK, tools)
}

// GetTool handles GET /api/tools/:id - returns a single tool
func GetTool(c *gin.Context) {
	db := config.GetDB()

	var tool models.Tool
	if err := db.First(&tool, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool not found",
		})
		return
	}

	attachIconURL(&tool)
	c.JSON(http.StatusOK, tool)
}

// CreateTool handles POST /api/tools - creates a new tool (admin only)
func CreateTool(c *gin.Context) {
	var req CreateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid request data",
		})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Name is required",
		})
		return
	}

	// A tool needs something to point at: a link or at least an icon
	hasLink := req.Link != nil && *req.Link != ""
	hasIcon := req.Icon != nil && *req.Icon != ""
	if !hasLink && !hasIcon {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Either link or icon is required",
		})
		return
	}

	if req.Price != nil && *req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Price must not be negative",
		})
		return
	}

	status := models.StatusAvailable
	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": "Status must be one of: available, beta, coming_soon",
			})
			return
		}
		status = *req.Status
	}

	tool := models.Tool{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Link:        req.Link,
		Demo:        req.Demo,
		Icon:        req.Icon,
		Status:      status,
	}

	db := config.GetDB()
	if err := db.Create(&tool).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to create tool",
		})
		return
	}

	services.TrackEvent("tool-created", map[string]interface{}{
		"tool_id":   tool.ID,
		"tool_name": tool.Name,
	})

	attachIconURL(&tool)
	c.JSON(http.StatusCreated, tool)
}

// UpdateTool handles PATCH /api/tools/:id - partial update (admin only)
func UpdateTool(c *gin.Context) {
	var req UpdateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid request data",
		})
		return
	}

	db := config.GetDB()
	var tool models.Tool
	if err := db.First(&tool, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool not found",
		})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": "Name must not be empty",
			})
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Price != nil {
		if *req.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": "Price must not be negative",
			})
			return
		}
		updates["price"] = *req.Price
	}
	if req.Link != nil {
		updates["link"] = *req.Link
	}
	if req.Demo != nil {
		updates["demo"] = *req.Demo
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": "Status must be one of: available, beta, coming_soon",
			})
			return
		}
		updates["status"] = *req.Status
	}

	// Nothing to change, return the row as-is
	if len(updates) == 0 {
		attachIconURL(&tool)
		c.JSON(http.StatusOK, tool)
		return
	}

	if err := db.Model(&tool).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to update tool",
		})
		return
	}

	// Fetch the updated row to return
	if err := db.First(&tool, "id = ?", tool.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to load updated tool",
		})
		return
	}

	services.TrackEvent("tool-updated", map[string]interface{}{
		"tool_id": tool.ID,
	})

	attachIconURL(&tool)
	c.JSON(http.StatusOK, tool)
}

// DeleteTool handles DELETE /api/tools/:id - removes a tool (admin only).
// Deletion is immediate and irreversible; the UI asks for confirmation
// before calling this.
func DeleteTool(c *gin.Context) {
	db := config.GetDB()

	var tool models.Tool
	if err := db.First(&tool, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool not found",
		})
		return
	}

	if err := db.Delete(&tool).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to delete tool",
		})
		return
	}

	// Clean up an uploaded icon, best effort
	if tool.Icon != nil && *tool.Icon != "" && !strings.HasPrefix(*tool.Icon, "http") {
		if iconService := services.GetIconService(); iconService != nil {
			if err := iconService.DeleteIcon(*tool.Icon); err != nil {
				log.Printf("Failed to delete icon for tool %s: %v", tool.ID, err)
			}
		}
	}

	services.TrackEvent("tool-deleted", map[string]interface{}{
		"tool_id": tool.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Tool deleted successfully",
	})
}
