package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextAdminID = "admin_id"
	ContextClaims  = "claims"
)

// Authenticator validates a session token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.Claims, error)
}

// AuthMiddleware verifies the admin session and adds the admin to the context.
// The token is read from the session cookie first, then the Authorization header.
func AuthMiddleware(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c, cookieName)

		if tokenString == "" {
			c.AbortWithStatusJSON(errutil.Response(errutil.Unauthorized("authorization token required")))
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(errutil.Response(err))
			return
		}

		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// AdminID returns the authenticated admin's ID
func AdminID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextAdminID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Claims returns the authenticated session claims
func Claims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

func extractToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
			return cookie
		}
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
