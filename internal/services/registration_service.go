package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/logger"

	"sportsmeet/internal/catalog"
	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/lock"
	"sportsmeet/internal/models"
	"sportsmeet/internal/store"
)

var (
	ErrForbidden      = errors.New("not allowed to modify this registration")
	ErrInvalidDetails = errors.New("invalid participant details")
)

// Uploads removes files that a registration no longer references.
type Uploads interface {
	Remove(name string)
}

// RegistrationService enters participants into events. Every check-and-commit
// for one identity number runs under that number's lock and inside a store
// transaction, so concurrent attempts cannot both pass the quota check.
type RegistrationService struct {
	store       store.RegistrationStore
	settings    *SettingsService
	catalog     *catalog.Catalog
	checker     *eligibility.Checker
	locker      lock.Locker
	lockTimeout time.Duration
	uploads     Uploads
	now         func() time.Time
}

func NewRegistrationService(st store.RegistrationStore, settings *SettingsService, cat *catalog.Catalog, checker *eligibility.Checker, locker lock.Locker) *RegistrationService {
	return &RegistrationService{
		store:       st,
		settings:    settings,
		catalog:     cat,
		checker:     checker,
		locker:      locker,
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

func (s *RegistrationService) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

func (s *RegistrationService) SetUploads(u Uploads) {
	s.uploads = u
}

func (s *RegistrationService) Checker() *eligibility.Checker {
	return s.checker
}

// Register admits p into p.Event on behalf of acc. Refusals are returned as
// *eligibility.Rejection.
func (s *RegistrationService) Register(ctx context.Context, acc *models.Account, p *models.Player) (*models.Player, error) {
	if err := s.settings.gate(ctx); err != nil {
		return nil, err
	}
	identity, err := eligibility.ValidateIdentityNumber(p.IdentityNumber)
	if err != nil {
		return nil, err
	}
	if !s.catalog.Contains(p.Event) {
		return nil, eligibility.Unknown(p.Event.Label())
	}
	if err := validateDetails(p); err != nil {
		return nil, err
	}

	entry := *p
	entry.ID = ""
	entry.IdentityNumber = identity
	entry.RegisteredBy = acc.ID
	if !acc.Admin || entry.Organisation == "" {
		entry.Organisation = acc.Organisation
	}

	var created *models.Player
	err = s.withIdentity(ctx, identity, func(ctx context.Context, tx store.RegistrationTx) error {
		existing, err := eventsOnFile(ctx, tx, identity, "")
		if err != nil {
			return err
		}
		if err := s.checker.Check(identity, entry.Event.Label(), existing); err != nil {
			return err
		}
		created, err = tx.CreateRegistration(ctx, &entry)
		return err
	})
	if err != nil {
		return nil, s.refusal(err, entry.Event)
	}
	logger.Infof("Registered %s for %s (%s)", created.MaskedIdentity(), created.Event.Label(), created.Organisation)
	return created, nil
}

// Update changes an existing registration. A new identity number or event is
// checked like a fresh entry, with the record itself left out of the count.
func (s *RegistrationService) Update(ctx context.Context, acc *models.Account, id string, changes *models.Player) (*models.Player, error) {
	current, err := s.Get(ctx, acc, id)
	if err != nil {
		return nil, err
	}
	if err := s.settings.gate(ctx); err != nil {
		return nil, err
	}
	identity, err := eligibility.ValidateIdentityNumber(changes.IdentityNumber)
	if err != nil {
		return nil, err
	}
	if !s.catalog.Contains(changes.Event) {
		return nil, eligibility.Unknown(changes.Event.Label())
	}
	if err := validateDetails(changes); err != nil {
		return nil, err
	}

	next := *current
	next.IdentityNumber = identity
	next.Event = changes.Event
	next.RawEvent = ""
	next.Name = changes.Name
	next.Age = changes.Age
	next.DateOfBirth = changes.DateOfBirth
	next.BloodGroup = changes.BloodGroup
	next.TShirtSize = changes.TShirtSize
	next.Mobile = changes.Mobile
	next.EmployeeID = changes.EmployeeID
	next.MealType = changes.MealType
	next.HealthIssues = changes.HealthIssues
	if changes.ProfilePicture != "" {
		next.ProfilePicture = changes.ProfilePicture
	}
	if changes.IDCard != "" {
		next.IDCard = changes.IDCard
	}
	if acc.Admin && changes.Organisation != "" {
		next.Organisation = changes.Organisation
	}

	var updated *models.Player
	if identity == current.IdentityNumber && next.Event == current.Event && current.RawEvent == "" {
		updated, err = s.store.UpdateRegistration(ctx, &next)
		if err != nil {
			return nil, s.refusal(err, next.Event)
		}
	} else {
		err = s.withIdentity(ctx, identity, func(ctx context.Context, tx store.RegistrationTx) error {
			existing, err := eventsOnFile(ctx, tx, identity, current.ID)
			if err != nil {
				return err
			}
			if err := s.checker.Check(identity, next.Event.Label(), existing); err != nil {
				return err
			}
			updated, err = tx.UpdateRegistration(ctx, &next)
			return err
		})
		if err != nil {
			return nil, s.refusal(err, next.Event)
		}
	}

	s.removeReplaced(current.ProfilePicture, updated.ProfilePicture)
	s.removeReplaced(current.IDCard, updated.IDCard)
	logger.Infof("Updated registration %s", updated.ID)
	return updated, nil
}

// ListForAccount returns the registrations acc entered, newest first. Admins
// see every registration.
func (s *RegistrationService) ListForAccount(ctx context.Context, acc *models.Account) ([]*models.Player, error) {
	filter := store.Filter{RegisteredBy: acc.ID}
	if acc.Admin {
		filter = store.Filter{}
	}
	return s.store.ListRegistrations(ctx, filter)
}

// ListAll returns every registration, newest first.
func (s *RegistrationService) ListAll(ctx context.Context) ([]*models.Player, error) {
	return s.store.ListRegistrations(ctx, store.Filter{})
}

// Usage reports how many solo and team events an identity number holds.
func (s *RegistrationService) Usage(ctx context.Context, identityNumber string) (eligibility.Counts, error) {
	identity, err := eligibility.ValidateIdentityNumber(identityNumber)
	if err != nil {
		return eligibility.Counts{}, err
	}
	events, err := eventsOnFile(ctx, s.store, identity, "")
	if err != nil {
		return eligibility.Counts{}, eligibility.Unavailable(err)
	}
	return s.checker.CountByType(events), nil
}

func (s *RegistrationService) Get(ctx context.Context, acc *models.Account, id string) (*models.Player, error) {
	p, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(acc, p) {
		return nil, ErrForbidden
	}
	return p, nil
}

// CanViewFile reports whether an upload belongs to a registration acc may
// modify. Admins may view every upload.
func (s *RegistrationService) CanViewFile(ctx context.Context, acc *models.Account, name string) (bool, error) {
	if acc == nil || name == "" {
		return false, nil
	}
	if acc.Admin {
		return true, nil
	}
	players, err := s.store.ListRegistrations(ctx, store.Filter{RegisteredBy: acc.ID})
	if err != nil {
		return false, err
	}
	for _, p := range players {
		if p.ProfilePicture == name || p.IDCard == name || (p.TravelPlan != nil && p.TravelPlan.Document == name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *RegistrationService) Delete(ctx context.Context, acc *models.Account, id string) error {
	p, err := s.Get(ctx, acc, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRegistration(ctx, id); err != nil {
		return err
	}
	s.removeReplaced(p.ProfilePicture, "")
	s.removeReplaced(p.IDCard, "")
	if p.TravelPlan != nil {
		s.removeReplaced(p.TravelPlan.Document, "")
	}
	logger.Infof("Deleted registration %s (%s, %s)", p.ID, p.MaskedIdentity(), p.EventLabel())
	return nil
}

// SetTravelPlan attaches travel details. An empty document keeps the one on file.
func (s *RegistrationService) SetTravelPlan(ctx context.Context, acc *models.Account, id string, plan models.TravelPlan) (*models.Player, error) {
	if !slices.Contains(models.TravelModes, plan.Mode) {
		return nil, fmt.Errorf("%w: mode of travel %q", ErrInvalidDetails, plan.Mode)
	}
	p, err := s.Get(ctx, acc, id)
	if err != nil {
		return nil, err
	}

	var previous string
	if p.TravelPlan != nil {
		previous = p.TravelPlan.Document
		if plan.Document == "" {
			plan.Document = p.TravelPlan.Document
			plan.DocumentName = p.TravelPlan.DocumentName
			plan.DocumentType = p.TravelPlan.DocumentType
		}
	}
	plan.UpdatedAt = s.now().UTC()
	p.TravelPlan = &plan

	updated, err := s.store.UpdateRegistration(ctx, p)
	if err != nil {
		return nil, err
	}
	s.removeReplaced(previous, plan.Document)
	return updated, nil
}

func (s *RegistrationService) ClearTravelPlan(ctx context.Context, acc *models.Account, id string) (*models.Player, error) {
	p, err := s.Get(ctx, acc, id)
	if err != nil {
		return nil, err
	}
	if p.TravelPlan == nil {
		return p, nil
	}
	previous := p.TravelPlan.Document
	p.TravelPlan = nil
	updated, err := s.store.UpdateRegistration(ctx, p)
	if err != nil {
		return nil, err
	}
	s.removeReplaced(previous, "")
	return updated, nil
}

// withIdentity runs fn under the identity's lock and store transaction. fn gets
// a context that ends with the request or as soon as the lock is lost.
func (s *RegistrationService) withIdentity(ctx context.Context, identity string, fn func(ctx context.Context, tx store.RegistrationTx) error) error {
	waitCtx, cancelWait := context.WithTimeout(ctx, s.lockTimeout)
	defer cancelWait()
	held, unlock, err := s.locker.Lock(waitCtx, "identity:"+identity)
	if err != nil {
		return fmt.Errorf("failed to lock identity: %w", err)
	}
	defer unlock()

	work, cancelWork := context.WithCancel(ctx)
	defer cancelWork()
	stop := context.AfterFunc(held, cancelWork)
	defer stop()

	return s.store.WithIdentityTx(work, identity, func(tx store.RegistrationTx) error {
		return fn(work, tx)
	})
}

// refusal turns an error from the commit path into what the caller sees.
// Anything that is not already a rejection or a lookup miss fails closed.
func (s *RegistrationService) refusal(err error, event models.EventRef) error {
	if _, ok := eligibility.AsRejection(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return &eligibility.Rejection{Reason: eligibility.DuplicateEvent, Event: event.Label()}
	case errors.Is(err, store.ErrNotFound):
		return err
	}
	logger.Errorf("Registration for %s failed: %v", event.Label(), err)
	return eligibility.Unavailable(err)
}

func (s *RegistrationService) removeReplaced(old, current string) {
	if s.uploads != nil && old != "" && old != current {
		s.uploads.Remove(old)
	}
}

// eventsOnFile lists the event labels held by identity across all
// organisations, leaving out the record excludeID.
func eventsOnFile(ctx context.Context, r store.RegistrationReader, identity, excludeID string) ([]string, error) {
	players, err := r.ListRegistrations(ctx, store.Filter{IdentityNumber: identity})
	if err != nil {
		return nil, err
	}
	events := make([]string, 0, len(players))
	for _, p := range players {
		if p.ID == excludeID {
			continue
		}
		events = append(events, p.EventLabel())
	}
	return events, nil
}

func canModify(acc *models.Account, p *models.Player) bool {
	return acc != nil && (acc.Admin || p.RegisteredBy == acc.ID)
}

func validateDetails(p *models.Player) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidDetails)
	case p.Age < 1 || p.Age > 100:
		return fmt.Errorf("%w: age must be between 1 and 100", ErrInvalidDetails)
	case !slices.Contains(models.BloodGroups, p.BloodGroup):
		return fmt.Errorf("%w: blood group %q", ErrInvalidDetails, p.BloodGroup)
	case !slices.Contains(models.MealTypes, p.MealType):
		return fmt.Errorf("%w: meal type %q", ErrInvalidDetails, p.MealType)
	case p.TShirtSize != "" && !slices.Contains(models.TShirtSizes, p.TShirtSize):
		return fmt.Errorf("%w: t-shirt size %q", ErrInvalidDetails, p.TShirtSize)
	}
	return nil
}
