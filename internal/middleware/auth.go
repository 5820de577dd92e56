package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/auth"
	"github.com/lalith-99/hostchat/internal/models"
)

// Context keys for the claims stored in gin.Context.
//
// Handlers go through the helpers below instead of reading the keys
// directly. A misspelled c.Get("userid") compiles and silently yields nil;
// a misspelled constant does not compile.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
	ContextKeyRole     = "role"
)

// AuthMiddleware validates the Bearer token and stores its claims in the
// request context.
//
// How it fits in the chain:
//   - It runs before every /v1 handler except register, login and health.
//   - A missing, malformed or expired token aborts with 401 and the handler
//     never runs.
//   - A valid token puts user id, username and role in the context and calls
//     c.Next(). RequireRole and the handlers read them back from there.
//
// The secret is passed in rather than read from config, so tests can sign
// their own tokens with any key.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		// "Bearer eyJhbG..." -> ["Bearer", "eyJhbG..."]
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		// Signature, expiry, issuer and signing method are all checked here.
		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)

		c.Next()
	}
}

// RequireRole lets only callers with the given role through and answers 403
// otherwise. It must run after AuthMiddleware, since it reads the role that
// AuthMiddleware stored.
//
// Only the admin routes use it. Participant checks ("is this my
// conversation?") depend on the request and stay in the handlers.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "requires role " + string(role),
			})
			return
		}
		c.Next()
	}
}

// The helpers do the type assertion once. A missing key yields the zero
// value, which matches no user and no role.

func GetUserID(c *gin.Context) int64 {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

func GetUsername(c *gin.Context) string {
	val, exists := c.Get(ContextKeyUsername)
	if !exists {
		return ""
	}
	name, ok := val.(string)
	if !ok {
		return ""
	}
	return name
}

func GetRole(c *gin.Context) models.Role {
	val, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	role, ok := val.(models.Role)
	if !ok {
		return ""
	}
	return role
}

func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == models.RoleAdmin
}
