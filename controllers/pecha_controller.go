package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/services"
)

// DownloadPecha handles GET /api/pecha/:id/download - fetches the pecha
// archive from the OpenPecha API and stores it locally without parsing.
// The saved file is not cleaned up; the caller owns it.
func DownloadPecha(c *gin.Context) {
	pechaID := c.Param("id")

	pechaService := services.NewPechaService(config.GetConfig())
	outputPath, err := pechaService.SavePecha(pechaID, services.PechaOutputDir)
	if err != nil {
		if errors.Is(err, services.ErrPechaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"detail": fmt.Sprintf("Pecha %s not found or could not be downloaded", pechaID),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": fmt.Sprintf("Error downloading pecha %s", pechaID),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pecha_id":      pechaID,
		"download_path": outputPath,
		"message":       fmt.Sprintf("Successfully downloaded pecha %s", pechaID),
	})
}

// GetPechaMetadata handles GET /api/pecha/:id/metadata - downloads and
// parses the pecha, returning only its metadata document
func GetPechaMetadata(c *gin.Context) {
	pechaID := c.Param("id")

	pecha, ok := parsePecha(c, pechaID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pecha_id": pecha.ID,
		"metadata": pecha.Metadata,
		"message":  fmt.Sprintf("Successfully retrieved metadata for pecha %s", pechaID),
	})
}

// GetPechaBases handles GET /api/pecha/:id/bases - downloads and parses
// the pecha, returning only its base texts
func GetPechaBases(c *gin.Context) {
	pechaID := c.Param("id")

	pecha, ok := parsePecha(c, pechaID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pecha_id": pecha.ID,
		"bases":    pecha.Bases,
		"message":  fmt.Sprintf("Successfully retrieved bases for pecha %s", pechaID),
	})
}

// parsePecha fetches and parses a pecha, writing the error response
// itself when something goes wrong
func parsePecha(c *gin.Context, pechaID string) (*services.Pecha, bool) {
	pechaService := services.NewPechaService(config.GetConfig())
	pecha, err := pechaService.ParsePecha(pechaID)
	if err != nil {
		if errors.Is(err, services.ErrPechaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"detail": fmt.Sprintf("Pecha %s not found or could not be downloaded", pechaID),
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": fmt.Sprintf("Error retrieving pecha %s", pechaID),
		})
		return nil, false
	}

	return pecha, true
}
