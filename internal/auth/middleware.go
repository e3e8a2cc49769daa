package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminCookieName is the name of the cookie that stores the admin session token
const AdminCookieName = "smiles_admin"

// CheckAdminPassword compares a submitted password with the configured one in constant time
func CheckAdminPassword(configured, submitted string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1
}

// SetAdminCookie stores the admin session token on the response
func SetAdminCookie(c *gin.Context, token string, maxAge int) {
	secure := gin.Mode() != gin.DebugMode
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AdminCookieName, token, maxAge, "/", "", secure, true)
}

// AdminMiddleware requires a valid admin token from the session cookie or a Bearer header
func AdminMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AdminCookieName)
		if err != nil || token == "" {
			header := c.GetHeader("Authorization")
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if !strings.HasPrefix(header, "Bearer ") {
				token = ""
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "admin login required"})
			return
		}

		claims, err := ValidateAdminToken(secret, token)
		if err != nil {
			msg := "invalid admin session"
			if errors.Is(err, ErrExpiredToken) {
				msg = "admin session expired, please log in again"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
