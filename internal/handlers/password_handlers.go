package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"sportsmeet/internal/auth"
)

// passwords returns the provider's password management, if it has any.
func (h *HTTPHandler) passwords(c *gin.Context) (auth.PasswordManager, bool) {
	pm, ok := h.Auth.(auth.PasswordManager)
	if !ok {
		h.renderPageStatus(c, http.StatusNotFound, gin.H{"title": "Not Found", "Error": auth.ErrPasswordsUnsupported.Error()}, "login.html")
	}
	return pm, ok
}

func (h *HTTPHandler) ShowForgotPassword(c *gin.Context) {
	if _, ok := h.passwords(c); !ok {
		return
	}
	h.renderPage(c, gin.H{"title": "Forgot Password"}, "forgot_password.html")
}

type forgotPasswordForm struct {
	Email string `form:"email" binding:"required,email"`
}

// ForgotPassword mails a reset link. The reply does not reveal whether the
// address has an account.
func (h *HTTPHandler) ForgotPassword(c *gin.Context) {
	pm, ok := h.passwords(c)
	if !ok {
		return
	}
	var form forgotPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderPageStatus(c, http.StatusBadRequest, gin.H{"title": "Forgot Password", "Error": "Please enter a valid email address."}, "forgot_password.html")
		return
	}
	if err := pm.RequestPasswordReset(c.Request.Context(), form.Email); err != nil {
		logger.Errorf("Password reset request failed: %v", err)
		h.renderPageStatus(c, http.StatusServiceUnavailable, gin.H{"title": "Forgot Password", "Error": "Failed to send reset email. Please try again."}, "forgot_password.html")
		return
	}
	h.renderPage(c, gin.H{"title": "Forgot Password", "Sent": true}, "forgot_password.html")
}

func (h *HTTPHandler) ShowResetPassword(c *gin.Context) {
	if _, ok := h.passwords(c); !ok {
		return
	}
	token := c.Query("token")
	if token == "" {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	h.renderPage(c, gin.H{"title": "Reset Password", "Token": token}, "reset_password.html")
}

type resetPasswordForm struct {
	Token           string `form:"token" binding:"required"`
	Password        string `form:"password" binding:"required"`
	PasswordConfirm string `form:"passwordConfirm" binding:"required"`
}

func (h *HTTPHandler) ResetPassword(c *gin.Context) {
	pm, ok := h.passwords(c)
	if !ok {
		return
	}
	var form resetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderPageStatus(c, http.StatusBadRequest, gin.H{"title": "Reset Password", "Token": form.Token, "Error": "Please fill in both password fields."}, "reset_password.html")
		return
	}
	if err := pm.ConfirmPasswordReset(c.Request.Context(), form.Token, form.Password, form.PasswordConfirm); err != nil {
		h.renderPageStatus(c, statusFor(err), gin.H{"title": "Reset Password", "Token": form.Token, "Error": messageFor(err)}, "reset_password.html")
		return
	}
	c.Redirect(http.StatusSeeOther, "/login?notice=reset")
}

func (h *HTTPHandler) renderActivate(c *gin.Context, status int, selected, message string) {
	h.renderPageStatus(c, status, gin.H{
		"title":         "Set Your Password",
		"Organisations": h.Catalog.Organisations,
		"Selected":      selected,
		"Error":         message,
	}, "activate.html")
}

// ShowActivate asks an account signed in with its issued password for a new
// one and, when still unbound, for its organisation.
func (h *HTTPHandler) ShowActivate(c *gin.Context) {
	if _, ok := h.passwords(c); !ok {
		return
	}
	h.renderActivate(c, http.StatusOK, c.Query("organisation"), "")
}

type activateForm struct {
	CurrentPassword string `form:"currentPassword" binding:"required"`
	Password        string `form:"password" binding:"required"`
	PasswordConfirm string `form:"passwordConfirm" binding:"required"`
	Organisation    string `form:"organisation"`
}

// Activate sets the new password and ends the session, since the record store
// revokes every token of the account on a password change.
func (h *HTTPHandler) Activate(c *gin.Context) {
	pm, ok := h.passwords(c)
	if !ok {
		return
	}
	var form activateForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderActivate(c, http.StatusBadRequest, form.Organisation, "Please fill in every password field.")
		return
	}
	if form.Organisation != "" && !slices.Contains(h.Catalog.Organisations, form.Organisation) {
		h.renderActivate(c, http.StatusUnprocessableEntity, "", "Please select your organisation from the list.")
		return
	}

	acc, _ := currentAccount(c)
	err := pm.Activate(c.Request.Context(), sessionToken(c), acc, auth.Activation{
		CurrentPassword: form.CurrentPassword,
		Password:        form.Password,
		PasswordConfirm: form.PasswordConfirm,
		Organisation:    form.Organisation,
	})
	if err != nil {
		h.renderActivate(c, statusFor(err), form.Organisation, messageFor(err))
		return
	}
	h.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusSeeOther, "/login?notice=activated")
}
