package middleware

import (
	"net/http"
	"strings"

	"github.com/carshot/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Auth validates the bearer token and loads the requesting user into the
// context under "user_id", "user" and "is_admin".
func Auth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not found or deactivated"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID.String())
		c.Set("user", user)
		c.Set("is_admin", user.IsAdmin)
		c.Next()
	}
}

// AdminOnly requires Auth to have run and the user to be an admin.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("is_admin") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
