package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/logger"

	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/store"
)

// SettingsService owns the registration gate.
type SettingsService struct {
	store    store.SettingsStore
	failOpen bool
	now      func() time.Time
}

// NewSettingsService creates the gate. With failOpen set, a settings read
// failure admits registrations instead of refusing them.
func NewSettingsService(st store.SettingsStore, failOpen bool) *SettingsService {
	return &SettingsService{store: st, failOpen: failOpen, now: time.Now}
}

// RegistrationOpen reads the gate flag. A missing flag means open.
func (s *SettingsService) RegistrationOpen(ctx context.Context) (bool, error) {
	setting, err := s.store.GetSetting(ctx, store.SettingRegistrationOpen)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read registration gate: %w", err)
	}
	open, err := strconv.ParseBool(setting.Value)
	if err != nil {
		logger.Warningf("Registration gate holds unreadable value %q, treating as open", setting.Value)
		return true, nil
	}
	return open, nil
}

// IsRegistrationOpen resolves read failures using the configured policy.
func (s *SettingsService) IsRegistrationOpen(ctx context.Context) bool {
	open, err := s.RegistrationOpen(ctx)
	if err != nil {
		logger.Errorf("%v (fail open: %t)", err, s.failOpen)
		return s.failOpen
	}
	return open
}

func (s *SettingsService) SetRegistrationOpen(ctx context.Context, open bool) error {
	if err := s.store.SetSetting(ctx, store.SettingRegistrationOpen, strconv.FormatBool(open)); err != nil {
		return fmt.Errorf("failed to update registration gate: %w", err)
	}
	if err := s.store.SetSetting(ctx, store.SettingLastUpdated, s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to stamp last update: %w", err)
	}
	logger.Infof("Registration gate set to open=%t", open)
	return nil
}

// LastUpdated is when the gate last changed, or nil if it never has.
func (s *SettingsService) LastUpdated(ctx context.Context) (*time.Time, error) {
	setting, err := s.store.GetSetting(ctx, store.SettingLastUpdated)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, setting.Value)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

// gate is the check used on the registration path: read failures become a
// StoreUnavailable refusal unless failing open.
func (s *SettingsService) gate(ctx context.Context) error {
	open, err := s.RegistrationOpen(ctx)
	if err != nil {
		if s.failOpen {
			logger.Warningf("%v, admitting registration", err)
			return nil
		}
		return eligibility.Unavailable(err)
	}
	if !open {
		return eligibility.Closed()
	}
	return nil
}
