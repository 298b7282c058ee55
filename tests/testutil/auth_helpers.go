package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing. The
// email and picture values end up in the namespaced custom claims, the
// same place the Auth0 post-login action writes them.
func MockValidatedClaims(subject, issuer, email, picture string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope:   strings.Join(scopes, " "),
			Email:   email,
			Picture: picture,
		},
	}
}

// SetMockAuthContext populates a Gin context the way the token
// middleware would for an authenticated request
func SetMockAuthContext(c *gin.Context, userID, email, accessToken string) {
	claims := MockValidatedClaims(userID, "https://test.auth0.com/", email, "", nil)
	c.Set("user_id", userID)
	c.Set("validated_claims", claims)
	if accessToken != "" {
		c.Set("access_token", accessToken)
	}
}

// MockAuthMiddleware returns a middleware that stands in for the token
// check, authenticating every request as the given user
func MockAuthMiddleware(userID, email, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, userID, email, accessToken)
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
