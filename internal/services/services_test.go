package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sportsmeet/internal/catalog"
	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/lock"
	"sportsmeet/internal/models"
	"sportsmeet/internal/pocketbase"
	"sportsmeet/internal/pocketbase/pbtest"
	"sportsmeet/internal/store"
)

const testIdentity = "234567890123"

var (
	owner = &models.Account{ID: "acc-uk", Username: "uk", Organisation: "Uttarakhand"}
	other = &models.Account{ID: "acc-kl", Username: "kl", Organisation: "Kerala"}
	admin = &models.Account{ID: "admin", Username: "admin", Organisation: "DUMMY", Admin: true}
)

type fixture struct {
	repo     store.Store
	settings *SettingsService
	reg      *RegistrationService
	uploads  *recordingUploads
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.NewSQLRepo(store.DriverSQLite, filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return newFixtureOn(repo, lock.NewKeyedMutex())
}

// newPocketBaseRepo returns a fresh client-backed store for srv. Each call
// stands in for a separate portal instance.
func newPocketBaseRepo(srv *pbtest.Server) *store.PocketBaseRepo {
	client := pocketbase.New(srv.URL, "admin-token")
	client.SetRetry(0, time.Millisecond, time.Millisecond)
	return store.NewPocketBaseRepo(client)
}

func newPocketBaseFixture(t *testing.T) (*fixture, *pbtest.Server) {
	t.Helper()
	srv := pbtest.NewServer()
	t.Cleanup(srv.Close)
	return newFixtureOn(newPocketBaseRepo(srv), lock.NewKeyedMutex()), srv
}

func newFixtureOn(repo store.Store, locker lock.Locker) *fixture {
	cat := catalog.Default()
	settings := NewSettingsService(repo, false)
	checker := eligibility.NewChecker(eligibility.NewClassifier(cat.TeamKeywords), eligibility.DefaultLimits)
	reg := NewRegistrationService(repo, settings, cat, checker, locker)
	uploads := &recordingUploads{}
	reg.SetUploads(uploads)
	return &fixture{repo: repo, settings: settings, reg: reg, uploads: uploads}
}

func entry(identity, sport, discipline, category string) *models.Player {
	return &models.Player{
		IdentityNumber: identity,
		Event:          models.EventRef{Sport: sport, Discipline: discipline, Category: category},
		Name:           "Asha Rawat",
		Age:            34,
		BloodGroup:     "B+",
		TShirtSize:     "M",
		Mobile:         "9876543210",
		EmployeeID:     "UKFD-101",
		MealType:       "Veg",
	}
}

func athletics(identity, discipline string) *models.Player {
	return entry(identity, "Athletics", discipline, "Men Open")
}

type recordingUploads struct {
	removed []string
}

func (u *recordingUploads) Remove(name string) {
	u.removed = append(u.removed, name)
}

// brokenSettings fails every read.
type brokenSettings struct{}

func (brokenSettings) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	return nil, errors.New("connection refused")
}

func (brokenSettings) SetSetting(ctx context.Context, key, value string) error {
	return errors.New("connection refused")
}

// unreadableRegistrations keeps settings and writes working but fails every
// registration listing, inside transactions too.
type unreadableRegistrations struct {
	store.Store
}

func (unreadableRegistrations) ListRegistrations(ctx context.Context, filter store.Filter) ([]*models.Player, error) {
	return nil, errors.New("read timeout")
}

func (u unreadableRegistrations) WithIdentityTx(ctx context.Context, identity string, fn func(tx store.RegistrationTx) error) error {
	return u.Store.WithIdentityTx(ctx, identity, func(tx store.RegistrationTx) error {
		return fn(unreadableTx{tx})
	})
}

type unreadableTx struct {
	store.RegistrationTx
}

func (unreadableTx) ListRegistrations(ctx context.Context, filter store.Filter) ([]*models.Player, error) {
	return nil, errors.New("read timeout")
}
