package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// ShowAdmin renders the registration overview.
func (h *HTTPHandler) ShowAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.Stats.Stats(ctx)
	if err != nil {
		logger.Errorf("Failed to build stats: %v", err)
		c.String(http.StatusServiceUnavailable, "Registrations could not be loaded, please try again.")
		return
	}
	players, err := h.Registrations.ListAll(ctx)
	if err != nil {
		logger.Errorf("Failed to list registrations: %v", err)
		c.String(http.StatusServiceUnavailable, "Registrations could not be loaded, please try again.")
		return
	}
	h.renderPage(c, gin.H{
		"title":   "Admin",
		"Stats":   stats,
		"Players": h.views(players),
	}, "admin.html")
}

// SetRegistrationGate opens or closes registration.
func (h *HTTPHandler) SetRegistrationGate(c *gin.Context) {
	open, err := strconv.ParseBool(c.PostForm("open"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid value for open")
		return
	}
	if err := h.Settings.SetRegistrationOpen(c.Request.Context(), open); err != nil {
		logger.Errorf("Failed to set registration gate: %v", err)
		c.String(http.StatusServiceUnavailable, "Registration gate could not be updated, please try again.")
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (h *HTTPHandler) PostNews(c *gin.Context) {
	text := c.PostForm("news")
	if text == "" {
		c.String(http.StatusBadRequest, "News text cannot be empty")
		return
	}
	if _, err := h.News.Post(c.Request.Context(), text); err != nil {
		logger.Errorf("Failed to post news: %v", err)
		c.String(http.StatusServiceUnavailable, "News could not be saved, please try again.")
		return
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

// ExportCSV handles the request to download all registrations as a CSV file.
// Identity numbers are masked unless full=1 is passed.
func (h *HTTPHandler) ExportCSV(c *gin.Context) {
	full := c.Query("full") == "1"
	filename := fmt.Sprintf("registrations_%s.csv", time.Now().Format("20060102"))

	// Add BOM to ensure UTF-8 compatibility in Excel
	buf := bytes.NewBufferString("\xef\xbb\xbf")
	if err := h.Stats.WriteCSV(c.Request.Context(), buf, full); err != nil {
		logger.Errorf("Error writing CSV export: %v", err)
		c.String(http.StatusServiceUnavailable, "Export failed, please try again.")
		return
	}

	c.Header("Content-Disposition", "attachment;filename="+filename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
