package app

import (
	"net/http"
	"strings"

	"school_library/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// sessionID reads the session id from the cookie, falling back to a Bearer token.
func sessionID(c *gin.Context) string {
	if ck, err := c.Request.Cookie(AppSessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func AuthRequired(appSess *session.AppSessionStore, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sessionID(c)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}
		c.Set("userID", as.UserID)
		c.Set("isAdmin", as.Role == session.RoleAdmin || cfg.IsAdmin(as.UserID))
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("userID"); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !c.GetBool("isAdmin") {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
