package handlers

import (
	"errors"
	"net/http"

	"sportsmeet/internal/auth"
	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/files"
	"sportsmeet/internal/services"
	"sportsmeet/internal/store"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	if rej, ok := eligibility.AsRejection(err); ok {
		if rej.Reason == eligibility.StoreUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, services.ErrForbidden), errors.Is(err, auth.ErrOrganisationMismatch):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidDetails), errors.Is(err, files.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrDefaultPassword), errors.Is(err, auth.ErrInvalidResetToken),
		errors.Is(err, auth.ErrOrganisationRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrPasswordsUnsupported):
		return http.StatusNotFound
	case errors.Is(err, files.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// messageFor is the text shown to the user. Internal failures stay generic.
func messageFor(err error) string {
	switch statusFor(err) {
	case http.StatusInternalServerError:
		return "Something went wrong, please try again."
	case http.StatusNotFound:
		if errors.Is(err, store.ErrNotFound) {
			return "Registration not found."
		}
	}
	return err.Error()
}
