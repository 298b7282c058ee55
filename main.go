package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/controllers"
	"github.com/openpecha/pecha-tools-api/middleware"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/openpecha/pecha-tools-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting Pecha Tools API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.User{}, &models.Tool{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Import any legacy catalog rows left over from the previous iteration
	if _, err := models.MigrateLegacyTools(db); err != nil {
		log.Fatalf("Failed to import legacy tools: %v", err)
	}

	// Initialize S3-backed icon storage when configured
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		services.InitIconService(s3Service)
	} else {
		log.Println("AWS_S3_BUCKET not set, icon uploads are disabled")
	}

	// Initialize the analytics sink
	services.InitAnalyticsSink(cfg)

	router := setupRouter(cfg)

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the Gin engine with all routes and middleware
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "https://" + cfg.Auth0Domain},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/api/health", healthCheck)

	requireToken := middleware.EnsureValidToken(cfg)
	requireAdmin := middleware.RequireAdmin()

	// Tool catalog
	tools := router.Group("/api/tools")
	{
		tools.GET("", controllers.ListTools)
		tools.GET("/:id", requireToken, controllers.GetTool)
		tools.GET("/:id/icon", controllers.GetToolIcon)
		tools.POST("", requireToken, requireAdmin, controllers.CreateTool)
		tools.PATCH("/:id", requireToken, requireAdmin, controllers.UpdateTool)
		tools.DELETE("/:id", requireToken, requireAdmin, controllers.DeleteTool)
		tools.POST("/:id/icon", requireToken, requireAdmin, controllers.UploadToolIcon)
	}

	// Pecha proxy against the OpenPecha API
	pecha := router.Group("/api/pecha")
	{
		pecha.GET("/:id/download", controllers.DownloadPecha)
		pecha.GET("/:id/metadata", controllers.GetPechaMetadata)
		pecha.GET("/:id/bases", controllers.GetPechaBases)
	}

	// User directory
	user := router.Group("/api/user")
	{
		user.POST("/create", requireToken, controllers.CreateUser)
		user.GET("/me", requireToken, controllers.GetMyProfile)
		user.PATCH("/me", requireToken, controllers.UpdateMyProfile)
		user.GET("", requireToken, requireAdmin, controllers.ListUsers)
		user.GET("/:id", requireToken, controllers.GetUser)
		user.PATCH("/:id/admin", requireToken, requireAdmin, controllers.SetAdminStatus)
		user.DELETE("/:id", requireToken, requireAdmin, controllers.DeleteUser)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Pecha Tools API is running",
	})
}
