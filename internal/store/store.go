package store

import (
	"context"
	"errors"

	"sportsmeet/internal/models"
)

var ErrNotFound = errors.New("record not found")

const (
	SettingRegistrationOpen = "registration_open"
	SettingLastUpdated      = "last_updated"
)

// Filter narrows a registration listing. Empty fields do not filter.
type Filter struct {
	IdentityNumber string
	RegisteredBy   string
	Organisation   string
}

// RegistrationReader and RegistrationWriter are the operations available inside
// an identity-scoped transaction.
type RegistrationReader interface {
	ListRegistrations(ctx context.Context, filter Filter) ([]*models.Player, error)
}

type RegistrationWriter interface {
	CreateRegistration(ctx context.Context, player *models.Player) (*models.Player, error)
	UpdateRegistration(ctx context.Context, player *models.Player) (*models.Player, error)
}

type RegistrationTx interface {
	RegistrationReader
	RegistrationWriter
}

type RegistrationStore interface {
	RegistrationTx
	GetRegistration(ctx context.Context, id string) (*models.Player, error)
	DeleteRegistration(ctx context.Context, id string) error
	// WithIdentityTx runs fn so that no other WithIdentityTx for the same
	// identity number can interleave between its reads and writes, where the
	// backend supports it.
	WithIdentityTx(ctx context.Context, identityNumber string, fn func(tx RegistrationTx) error) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
}

type NewsStore interface {
	ListNews(ctx context.Context, page, perPage int) ([]*models.NewsItem, int, error)
	CreateNews(ctx context.Context, text string) (*models.NewsItem, error)
}

// Store is everything the portal persists.
type Store interface {
	RegistrationStore
	SettingsStore
	NewsStore
	Ping(ctx context.Context) error
	Close() error
}
