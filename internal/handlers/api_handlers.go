package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"sportsmeet/internal/auth"
	"sportsmeet/internal/files"
)

// ListNews returns one page of announcements.
func (h *HTTPHandler) ListNews(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	result, err := h.News.List(c.Request.Context(), page)
	if err != nil {
		logger.Errorf("Failed to list news: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news is unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		logger.Warningf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionRequest struct {
	Cookie string `json:"cookie" binding:"required"`
}

// SetSession stores a session cookie exported by the browser SDK so that
// server-rendered pages can read it.
func (h *HTTPHandler) SetSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing cookie"})
		return
	}
	if !strings.HasPrefix(req.Cookie, auth.CookieName+"=") || strings.ContainsAny(req.Cookie, "\r\n") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookie"})
		return
	}
	c.Header("Set-Cookie", req.Cookie)
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ClearSession(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		_ = h.Auth.Logout(c.Request.Context(), token)
	}
	c.Header("Set-Cookie", auth.CookieName+"=; Max-Age=0; Path=/; HttpOnly; Secure; SameSite=Lax")
	c.Status(http.StatusNoContent)
}

// ServeFile streams an uploaded document to the account that registered it.
// Uploads of other accounts look missing.
func (h *HTTPHandler) ServeFile(c *gin.Context) {
	name := c.Param("name")
	path, err := h.Uploads.Path(name)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	acc, _ := currentAccount(c)
	ok, err := h.Registrations.CanViewFile(c.Request.Context(), acc, name)
	if err != nil {
		logger.Errorf("Failed to check access to %s: %v", name, err)
		c.Status(http.StatusServiceUnavailable)
		return
	}
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Type", files.ContentType(name))
	c.File(path)
}
