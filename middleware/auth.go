package middleware

import (
	"net/http"
	"strings"

	"room-booking/models"
	"room-booking/services"
	"room-booking/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// TokenParser validates access tokens.
type TokenParser interface {
	ParseAccess(raw string) (*services.AccessClaims, error)
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	utils.AbortError(c, http.StatusUnauthorized, services.CodeOf(services.ErrInvalidToken), string(services.KindUnauthorized), message)
}

func setIdentity(c *gin.Context, claims *services.AccessClaims) bool {
	id, err := claims.UserID()
	if err != nil {
		return false
	}
	c.Set(ctxUserID, id)
	c.Set(ctxRole, claims.Role)
	return true
}

// JWTAuth requires a valid Bearer access token and stores user_id and role.
func JWTAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		claims, err := tokens.ParseAccess(raw)
		if err != nil || !setIdentity(c, claims) {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Next()
	}
}

// OptionalAuth records the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c); ok {
			if claims, err := tokens.ParseAccess(raw); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireAdmin must run after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != models.RoleAdmin {
			utils.AbortError(c, http.StatusForbidden, "error.adminRequired", string(services.KindForbidden), "admin role required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
