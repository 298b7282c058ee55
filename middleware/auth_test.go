package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func TestHasScope(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		expected string
		has      bool
	}{
		{"single scope present", "read:tools", "read:tools", true},
		{"scope among many", "openid profile email", "email", true},
		{"scope absent", "openid profile", "email", false},
		{"empty scope string", "", "email", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := CustomClaims{Scope: tt.scope}
			assert.Equal(t, tt.has, claims.HasScope(tt.expected))
		})
	}
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("present", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", "auth0|123")

		userID, err := GetUserID(c)
		assert.NoError(t, err)
		assert.Equal(t, "auth0|123", userID)
	})

	t.Run("missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetUserID(c)
		assert.Error(t, err)
		authErr, ok := err.(*AuthError)
		assert.True(t, ok, "Error should be an AuthError")
		assert.Equal(t, "MISSING_USER_ID", authErr.Code)
	})

	t.Run("wrong type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 42)

		_, err := GetUserID(c)
		assert.Error(t, err)
	})
}

func TestGetAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("present", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("access_token", "token-abc")

		token, err := GetAccessToken(c)
		assert.NoError(t, err)
		assert.Equal(t, "token-abc", token)
	})

	t.Run("missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetAccessToken(c)
		assert.Error(t, err)
	})
}

// fakeAuth simulates EnsureValidToken having already run
func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupAuthTestDB(t)
	config.SetDB(db)

	admin := models.User{ID: "auth0|admin", Email: "admin@pecha.tools", IsAdmin: true}
	regular := models.User{ID: "auth0|user", Email: "user@pecha.tools"}
	assert.NoError(t, db.Create(&admin).Error)
	assert.NoError(t, db.Create(&regular).Error)

	newRouter := func(userID string) *gin.Engine {
		router := gin.New()
		router.GET("/admin-only", fakeAuth(userID), RequireAdmin(), func(c *gin.Context) {
			user, err := GetCurrentUser(c)
			assert.NoError(t, err)
			c.JSON(http.StatusOK, gin.H{"id": user.ID})
		})
		return router
	}

	t.Run("admin passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin-only", nil)
		newRouter("auth0|admin").ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "auth0|admin", body["id"])
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin-only", nil)
		newRouter("auth0|user").ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body["detail"], "Error body should carry a detail message")
	})

	t.Run("unknown subject rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin-only", nil)
		newRouter("auth0|nobody").ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
