package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/openpecha/pecha-tools-api/services"
	"github.com/openpecha/pecha-tools-api/utils"
)

// UploadToolIcon handles POST /api/tools/:id/icon (admin only). The icon
// is stored in S3 and its key replaces the tool's icon field; a previous
// uploaded icon is removed.
func UploadToolIcon(c *gin.Context) {
	db := config.GetDB()

	var tool models.Tool
	if err := db.First(&tool, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool not found",
		})
		return
	}

	fileHeader, err := c.FormFile("icon")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "An icon file is required",
		})
		return
	}

	iconService := services.GetIconService()
	if iconService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Icon storage is not configured",
		})
		return
	}

	iconKey, err := iconService.UploadIcon(fileHeader)
	if err != nil {
		if uploadErr, ok := err.(*utils.FileUploadError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": uploadErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to store icon",
		})
		return
	}

	oldIcon := ""
	if tool.Icon != nil {
		oldIcon = *tool.Icon
	}

	if err := db.Model(&tool).Update("icon", iconKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to update tool icon",
		})
		return
	}
	tool.Icon = &iconKey

	// Replaced an earlier upload, best-effort cleanup
	if oldIcon != "" && oldIcon != iconKey && !isAbsoluteURL(oldIcon) {
		_ = iconService.DeleteIcon(oldIcon)
	}

	attachIconURL(&tool)
	c.JSON(http.StatusOK, tool)
}

// GetToolIcon handles GET /api/tools/:id/icon - redirects to a URL the
// icon can be fetched from
func GetToolIcon(c *gin.Context) {
	db := config.GetDB()

	var tool models.Tool
	if err := db.First(&tool, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool not found",
		})
		return
	}

	if tool.Icon == nil || *tool.Icon == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Tool has no icon",
		})
		return
	}

	if isAbsoluteURL(*tool.Icon) {
		c.Redirect(http.StatusFound, *tool.Icon)
		return
	}

	iconService := services.GetIconService()
	if iconService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Icon storage is not configured",
		})
		return
	}

	url, err := iconService.GetIconURL(*tool.Icon)
	if err != nil || url == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Icon not found",
		})
		return
	}

	c.Redirect(http.StatusFound, url)
}

func isAbsoluteURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}
