package handlers

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"sportsmeet/internal/auth"
	"sportsmeet/internal/catalog"
	"sportsmeet/internal/files"
	"sportsmeet/internal/models"
	"sportsmeet/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Auth          auth.Provider
	Registrations *services.RegistrationService
	Settings      *services.SettingsService
	Stats         *services.StatsService
	News          *services.NewsService
	Schedule      *services.ScheduleService
	Catalog       *catalog.Catalog
	Uploads       *files.Store
	Store         Pinger
	SecureCookies bool
	SessionTTL    time.Duration
}

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	Deps
	templates *template.Template
}

func NewHTTPHandler(deps Deps, templates *template.Template) *HTTPHandler {
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 12 * time.Hour
	}
	return &HTTPHandler{Deps: deps, templates: templates}
}

// TemplateFuncs are the helpers every page template may use.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	h.renderPageStatus(c, http.StatusOK, pageData, contentTmpl)
}

func (h *HTTPHandler) renderPageStatus(c *gin.Context, status int, pageData gin.H, contentTmpl string) {
	pageData["Meet"] = h.Catalog.Meet
	if acc, ok := currentAccount(c); ok {
		pageData["Account"] = acc
	}

	// Step 1: Render the specific page content into a buffer.
	buf := new(bytes.Buffer)
	if err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData); err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	// Step 2: Add the rendered content to the main data map and render the layout.
	pageData["PageContent"] = template.HTML(buf.String())

	out := new(bytes.Buffer)
	if err := h.templates.ExecuteTemplate(out, "layout.html", pageData); err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", out.Bytes())
}

// RegisterPublicRoutes registers the routes that need no session.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/", h.ShowIndex)
	router.GET("/about", h.staticPage("About", "about.html"))
	router.GET("/committee", h.staticPage("Committee", "committee.html"))
	router.GET("/contact", h.staticPage("Contact Us", "contact.html"))
	router.GET("/events", h.ShowEvents)
	router.GET("/schedule", h.ShowSchedule)
	router.GET("/schedule.ics", h.ScheduleICS)
	router.GET("/login", h.ShowLogin)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)
	router.GET("/forgot-password", h.ShowForgotPassword)
	router.POST("/forgot-password", h.ForgotPassword)
	router.GET("/reset-password", h.ShowResetPassword)
	router.POST("/reset-password", h.ResetPassword)

	api := router.Group("/api")
	api.GET("/news", h.ListNews)
	api.GET("/health", h.Health)
	api.POST("/session", h.SetSession)
	api.DELETE("/session", h.ClearSession)
}

// RegisterAccountRoutes registers the routes for signed-in registrants.
// The group must carry AuthMiddleware.
func (h *HTTPHandler) RegisterAccountRoutes(router gin.IRouter) {
	router.GET("/dashboard", h.ShowDashboard)
	router.GET("/activate", h.ShowActivate)
	router.POST("/activate", h.Activate)
	router.POST("/players", h.CreatePlayer)
	router.POST("/players/:id", h.UpdatePlayer)
	router.POST("/players/:id/delete", h.DeletePlayer)
	router.POST("/players/:id/travel", h.SetTravelPlan)
	router.POST("/players/:id/travel/delete", h.ClearTravelPlan)
	router.GET("/files/:name", h.ServeFile)
}

// RegisterAdminRoutes registers the admin routes. The group must carry
// AuthMiddleware and AdminMiddleware.
func (h *HTTPHandler) RegisterAdminRoutes(router gin.IRouter) {
	router.GET("/admin", h.ShowAdmin)
	router.POST("/admin/registration", h.SetRegistrationGate)
	router.POST("/admin/news", h.PostNews)
	router.GET("/admin/export.csv", h.ExportCSV)
}

// ShowIndex handles the request for the home page.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	data := gin.H{
		"title":            "Home",
		"RegistrationOpen": h.Settings.IsRegistrationOpen(c.Request.Context()),
	}
	if page, err := h.News.List(c.Request.Context(), 1); err == nil {
		data["News"] = page
	} else {
		logger.Warningf("Failed to load news: %v", err)
	}
	h.renderPage(c, data, "index.html")
}

func (h *HTTPHandler) staticPage(title, tmpl string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.renderPage(c, gin.H{"title": title}, tmpl)
	}
}

// ShowEvents lists the sports, disciplines and categories on offer.
func (h *HTTPHandler) ShowEvents(c *gin.Context) {
	h.renderPage(c, gin.H{"title": "Events", "Sports": h.Catalog.Sports}, "events.html")
}

func (h *HTTPHandler) ShowSchedule(c *gin.Context) {
	h.renderPage(c, gin.H{"title": "Schedule", "Days": h.Schedule.Days()}, "schedule.html")
}

func (h *HTTPHandler) ScheduleICS(c *gin.Context) {
	c.Header("Content-Disposition", "attachment;filename=schedule.ics")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(h.Schedule.ICS()))
}

func (h *HTTPHandler) ShowLogin(c *gin.Context) {
	h.renderLogin(c, http.StatusOK, "")
}

func (h *HTTPHandler) renderLogin(c *gin.Context, status int, message string) {
	h.renderPageStatus(c, status, gin.H{
		"title":         "Login",
		"Organisations": h.Catalog.Organisations,
		"Error":         message,
		"Notice":        loginNotices[c.Query("notice")],
	}, "login.html")
}

var loginNotices = map[string]string{
	"activated": "Your password has been changed. Please log in again.",
	"reset":     "Your password has been reset. You can now log in with your new password.",
}

type loginForm struct {
	Identity     string `form:"identity" binding:"required"`
	Password     string `form:"password" binding:"required"`
	Organisation string `form:"organisation" binding:"required"`
}

// Login checks the credentials and the chosen organisation, then sets the
// session cookie.
func (h *HTTPHandler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderLogin(c, http.StatusBadRequest, "Please select an organisation and enter your credentials.")
		return
	}

	ctx := c.Request.Context()
	session, err := h.Auth.Login(ctx, form.Identity, form.Password)
	if err != nil {
		h.renderLogin(c, statusFor(err), messageFor(err))
		return
	}
	// an account on its issued password may still need its organisation bound
	unbound := session.MustChangePassword && strings.TrimSpace(session.Account.Organisation) == ""
	if !unbound {
		if err := auth.CheckOrganisation(session.Account, form.Organisation); err != nil {
			_ = h.Auth.Logout(ctx, session.Token)
			h.renderLogin(c, statusFor(err), messageFor(err))
			return
		}
	}

	h.setSessionCookie(c, session.Token, int(h.SessionTTL.Seconds()))
	if session.MustChangePassword {
		c.Redirect(http.StatusSeeOther, "/activate?organisation="+url.QueryEscape(form.Organisation))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if err := h.Auth.Logout(c.Request.Context(), token); err != nil {
			logger.Warningf("Logout failed: %v", err)
		}
	}
	h.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *HTTPHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", h.SecureCookies, true)
}

// playerView is a registration as the dashboard shows it.
type playerView struct {
	*models.Player
	Team bool
}

func (h *HTTPHandler) views(players []*models.Player) []playerView {
	checker := h.Registrations.Checker()
	out := make([]playerView, 0, len(players))
	for _, p := range players {
		out = append(out, playerView{Player: p, Team: checker.IsTeamEvent(p.EventLabel())})
	}
	return out
}
