package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"sportsmeet/internal/files"
	"sportsmeet/internal/models"
)

type playerForm struct {
	IdentityNumber string `form:"aadhar" binding:"required"`
	Sport          string `form:"sport" binding:"required"`
	Discipline     string `form:"discipline" binding:"required"`
	Category       string `form:"category" binding:"required"`
	Name           string `form:"name" binding:"required"`
	Age            int    `form:"age" binding:"required,min=1,max=100"`
	DateOfBirth    string `form:"dateOfBirth"`
	BloodGroup     string `form:"bloodGroup" binding:"required"`
	TShirtSize     string `form:"tShirtSize"`
	Mobile         string `form:"mobile" binding:"required"`
	EmployeeID     string `form:"employeeId" binding:"required"`
	MealType       string `form:"mealType" binding:"required"`
	HealthIssues   string `form:"healthIssues"`
	Organisation   string `form:"organisation"`
}

func (f *playerForm) player() *models.Player {
	return &models.Player{
		IdentityNumber: f.IdentityNumber,
		Organisation:   f.Organisation,
		Event:          models.EventRef{Sport: f.Sport, Discipline: f.Discipline, Category: f.Category},
		Name:           f.Name,
		Age:            f.Age,
		DateOfBirth:    f.DateOfBirth,
		BloodGroup:     f.BloodGroup,
		TShirtSize:     f.TShirtSize,
		Mobile:         f.Mobile,
		EmployeeID:     f.EmployeeID,
		MealType:       f.MealType,
		HealthIssues:   f.HealthIssues,
	}
}

// ShowDashboard lists the registrant's entries with the registration form.
func (h *HTTPHandler) ShowDashboard(c *gin.Context) {
	h.renderDashboard(c, http.StatusOK, "")
}

func (h *HTTPHandler) renderDashboard(c *gin.Context, status int, message string) {
	acc, _ := currentAccount(c)
	ctx := c.Request.Context()

	data := gin.H{
		"title":            "Dashboard",
		"Error":            message,
		"RegistrationOpen": h.Settings.IsRegistrationOpen(ctx),
		"Limits":           h.Registrations.Checker().Limits(),
		"Sports":           h.Catalog.Sports,
		"Organisations":    h.Catalog.Organisations,
		"BloodGroups":      models.BloodGroups,
		"MealTypes":        models.MealTypes,
		"TShirtSizes":      models.TShirtSizes,
		"TravelModes":      models.TravelModes,
	}
	players, err := h.Registrations.ListForAccount(ctx, acc)
	if err != nil {
		logger.Errorf("Failed to list registrations for %s: %v", acc.ID, err)
		if status == http.StatusOK {
			status = http.StatusServiceUnavailable
		}
		if data["Error"] == "" {
			data["Error"] = "Registrations could not be loaded, please try again."
		}
	}
	data["Players"] = h.views(players)
	h.renderPageStatus(c, status, data, "dashboard.html")
}

// CreatePlayer registers a participant for one event.
func (h *HTTPHandler) CreatePlayer(c *gin.Context) {
	var form playerForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderDashboard(c, http.StatusBadRequest, "Please fill in all required fields.")
		return
	}
	p := form.player()

	saved, err := h.saveUploads(c, p)
	if err != nil {
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}

	acc, _ := currentAccount(c)
	if _, err := h.Registrations.Register(c.Request.Context(), acc, p); err != nil {
		h.discard(saved)
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *HTTPHandler) UpdatePlayer(c *gin.Context) {
	var form playerForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderDashboard(c, http.StatusBadRequest, "Please fill in all required fields.")
		return
	}
	p := form.player()

	saved, err := h.saveUploads(c, p)
	if err != nil {
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}

	acc, _ := currentAccount(c)
	if _, err := h.Registrations.Update(c.Request.Context(), acc, c.Param("id"), p); err != nil {
		h.discard(saved)
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *HTTPHandler) DeletePlayer(c *gin.Context) {
	acc, _ := currentAccount(c)
	if err := h.Registrations.Delete(c.Request.Context(), acc, c.Param("id")); err != nil {
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

type travelForm struct {
	Mode string `form:"modeOfTravel" binding:"required"`
}

// SetTravelPlan attaches the mode of travel and an optional ticket.
func (h *HTTPHandler) SetTravelPlan(c *gin.Context) {
	var form travelForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderDashboard(c, http.StatusBadRequest, "Please select a mode of travel.")
		return
	}
	plan := models.TravelPlan{Mode: form.Mode}

	var saved []string
	if fh, err := c.FormFile("travelPlan"); err == nil {
		name, err := h.Uploads.Save(files.KindTravel, fh)
		if err != nil {
			h.renderDashboard(c, statusFor(err), messageFor(err))
			return
		}
		saved = append(saved, name)
		plan.Document = name
		plan.DocumentName = filepath.Base(fh.Filename)
		plan.DocumentType = files.ContentType(name)
	}

	acc, _ := currentAccount(c)
	if _, err := h.Registrations.SetTravelPlan(c.Request.Context(), acc, c.Param("id"), plan); err != nil {
		h.discard(saved)
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *HTTPHandler) ClearTravelPlan(c *gin.Context) {
	acc, _ := currentAccount(c)
	if _, err := h.Registrations.ClearTravelPlan(c.Request.Context(), acc, c.Param("id")); err != nil {
		h.renderDashboard(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// saveUploads stores the optional photo and ID card and records their names
// on p. It returns the stored names so a failed registration can drop them.
func (h *HTTPHandler) saveUploads(c *gin.Context, p *models.Player) ([]string, error) {
	var saved []string
	for _, u := range []struct {
		field string
		kind  string
		dst   *string
	}{
		{"profilePicture", files.KindProfile, &p.ProfilePicture},
		{"employeeIDCard", files.KindIDCard, &p.IDCard},
	} {
		fh, err := c.FormFile(u.field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			h.discard(saved)
			return nil, err
		}
		name, err := h.save(u.kind, fh)
		if err != nil {
			h.discard(saved)
			return nil, err
		}
		saved = append(saved, name)
		*u.dst = name
	}
	return saved, nil
}

func (h *HTTPHandler) save(kind string, fh *multipart.FileHeader) (string, error) {
	name, err := h.Uploads.Save(kind, fh)
	if err != nil {
		logger.Warningf("Rejected %s upload %q: %v", kind, fh.Filename, err)
	}
	return name, err
}

func (h *HTTPHandler) discard(names []string) {
	for _, n := range names {
		h.Uploads.Remove(n)
	}
}
