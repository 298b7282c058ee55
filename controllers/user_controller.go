package controllers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/middleware"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/openpecha/pecha-tools-api/services"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserListResponse is the paginated user listing envelope
type UserListResponse struct {
	Items    []models.User `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Pages    int           `json:"pages"`
}

// UpdateProfileRequest represents the request body for a partial
// self-profile update. Only fields present in the request are applied.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

// SetAdminRequest represents the request body for toggling the admin flag
type SetAdminRequest struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

// CreateUser handles POST /api/user/create - idempotent upsert keyed on
// the provider subject. Called by the frontend right after the login
// redirect completes; calling it again for a known subject returns the
// existing row unchanged.
func CreateUser(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "Could not extract user information",
		})
		return
	}

	db := config.GetDB()

	// Already registered: return the existing row
	var existing models.User
	if err := db.First(&existing, "id = ?", userID).Error; err == nil {
		c.JSON(http.StatusOK, existing)
		return
	}

	// First login: pull profile data from the identity provider
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "Access token not found",
		})
		return
	}

	cfg := config.GetConfig()
	auth0Service := services.NewAuth0Service(cfg)
	userInfo, err := auth0Service.GetUserInfo(accessToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to fetch user information from the identity provider",
		})
		return
	}

	email := userInfo.Email
	if email == "" {
		// Some token flows omit email from /userinfo but carry it in the
		// namespaced custom claim
		if claims, claimsErr := middleware.GetClaims(c); claimsErr == nil {
			if custom, ok := claims.CustomClaims.(*middleware.CustomClaims); ok {
				email = custom.Email
			}
		}
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Email not provided by the identity provider",
		})
		return
	}

	user := models.User{
		ID:    userID,
		Email: email,
	}
	if userInfo.Name != "" {
		user.Name = &userInfo.Name
	} else {
		// Fall back to the email local part, like the original portal
		local := strings.SplitN(email, "@", 2)[0]
		user.Name = &local
	}
	if userInfo.Picture != "" {
		user.Picture = &userInfo.Picture
	}

	if err := db.Create(&user).Error; err != nil {
		// A concurrent first-login request may have won the insert race;
		// upsert semantics mean we return that row instead of failing
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") ||
			strings.Contains(errMsg, "unique constraint") ||
			strings.Contains(errMsg, "unique") {
			if err := db.First(&user, "id = ?", userID).Error; err == nil {
				c.JSON(http.StatusOK, user)
				return
			}
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to create user",
		})
		return
	}

	services.TrackEvent("user-created", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	c.JSON(http.StatusOK, user)
}

// GetMyProfile handles GET /api/user/me - returns the caller's own row
func GetMyProfile(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "Could not extract user information",
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "User not found. Please sign in again.",
		})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMyProfile handles PATCH /api/user/me - applies the provided
// fields to the caller's own row. The admin flag cannot be changed
// here; that goes through the admin toggle.
func UpdateMyProfile(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "Could not extract user information",
		})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid request data",
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "User not found. Please sign in again.",
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
	if req.Picture != nil {
		updates["picture"] = *req.Picture
	}

	// Nothing to change, return the row as-is
	if len(updates) == 0 {
		c.JSON(http.StatusOK, user)
		return
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to update user",
		})
		return
	}
	if req.Name != nil {
		user.Name = req.Name
	}
	if req.Picture != nil {
		user.Picture = req.Picture
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers handles GET /api/user?search=&page=&page_size= (admin only).
// search is a case-insensitive substring match against email or name.
// Pages are 1-indexed; a page past the end returns empty items with
// correct totals.
func ListUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		page = defaultPage
	}

	sizeParam := c.Query("page_size")
	if sizeParam == "" {
		sizeParam = c.Query("pageSize")
	}
	pageSize, err := strconv.Atoi(sizeParam)
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	db := config.GetDB()
	query := db.Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", needle, needle)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to count users",
		})
		return
	}

	var users []models.User
	err = query.
		Order("email ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to load users",
		})
		return
	}

	pages := int(math.Ceil(float64(total) / float64(pageSize)))

	c.JSON(http.StatusOK, UserListResponse{
		Items:    users,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	})
}

// GetUser handles GET /api/user/:id - a user may read their own row;
// admins may read anyone's
func GetUser(c *gin.Context) {
	callerID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "Could not extract user information",
		})
		return
	}

	targetID := c.Param("id")
	db := config.GetDB()

	if callerID != targetID {
		var caller models.User
		if err := db.First(&caller, "id = ?", callerID).Error; err != nil || !caller.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"detail": "Not authorized to access this user",
			})
			return
		}
	}

	var user models.User
	if err := db.First(&user, "id = ?", targetID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "User not found",
		})
		return
	}

	c.JSON(http.StatusOK, user)
}

// SetAdminStatus handles PATCH /api/user/:id/admin (admin only). The new
// flag is visible to every subsequent read as soon as this returns.
func SetAdminStatus(c *gin.Context) {
	var req SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "isAdmin is required",
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "User not found",
		})
		return
	}

	if err := db.Model(&user).Update("is_admin", *req.IsAdmin).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to update user",
		})
		return
	}
	user.IsAdmin = *req.IsAdmin

	services.TrackEvent("user-role-changed", map[string]interface{}{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
	})

	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/user/:id (admin only)
func DeleteUser(c *gin.Context) {
	db := config.GetDB()

	var user models.User
	if err := db.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "User not found",
		})
		return
	}

	if err := db.Delete(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to delete user",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
	})
}
