package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"sportsmeet/internal/auth"
	"sportsmeet/internal/models"
)

const accountKey = "account"

// AuthMiddleware resolves the session cookie into an account. Pages redirect
// to the login form when there is none; API calls get 401.
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := h.Auth.Resolve(c.Request.Context(), sessionToken(c))
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				logger.Errorf("Failed to resolve session: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication service unavailable"})
				return
			}
			if c.Request.Method == http.MethodGet && !strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.Redirect(http.StatusFound, "/login")
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrNoSession.Error()})
			return
		}
		c.Set(accountKey, acc)
		c.Next()
	}
}

// AdminMiddleware only lets admin accounts through.
func (h *HTTPHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := currentAccount(c)
		if !ok || !acc.Admin {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func currentAccount(c *gin.Context) (*models.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*models.Account)
	return acc, ok
}

// sessionToken reads the token from the session cookie. The cookie holds
// either the bare token or the URL-encoded JSON auth store written by the
// record store's browser SDK.
func sessionToken(c *gin.Context) string {
	raw, err := c.Cookie(auth.CookieName)
	if err != nil || raw == "" {
		return ""
	}
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var stored struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return ""
	}
	return stored.Token
}
