// Package middleware provides Gin HTTP middleware for authentication,
// workspace authorization, rate limiting, security headers, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → Auth → RateLimit → Workspace role → Handler
//
// Security headers run first so they appear on all responses including errors.
// On authenticated routes auth runs before rate limiting so the limiter can
// key on the user ID rather than the client IP; only the public auth
// endpoints are limited pre-auth, by IP. Auth populates the user identity;
// the workspace role middleware reads from that context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/auth"
	"github.com/apivault/apivault/internal/db/repositories"
)

// Context keys set by AuthMiddleware
const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

// AuthMiddleware validates the Bearer JWT and loads the authenticated user
// into the request context. Every authenticated route sits behind it.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Authorization header must start with 'Bearer '")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			abortUnauthorized(c, "Authorization token is empty")
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Failed to load user",
				"code":    "INTERNAL_ERROR",
			})
			return
		}
		if user == nil {
			// token signed for an account that no longer exists
			abortUnauthorized(c, "User not found")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
		"code":    "UNAUTHORIZED",
	})
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request did not pass AuthMiddleware.
func UserIDFromContext(c *gin.Context) string {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
