package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/logger"

	"sportsmeet/internal/models"
	"sportsmeet/internal/pocketbase"
)

const (
	collectionPlayers  = "players"
	collectionSettings = "settings"
	collectionNews     = "news"
)

// PocketBaseRepo keeps registrations in an external PocketBase collection. The
// API offers no multi-request transactions, so identity serialization comes
// from the caller's lock alone.
type PocketBaseRepo struct {
	client *pocketbase.Client
}

func NewPocketBaseRepo(client *pocketbase.Client) *PocketBaseRepo {
	return &PocketBaseRepo{client: client}
}

func (r *PocketBaseRepo) Close() error {
	return nil
}

func (r *PocketBaseRepo) Ping(ctx context.Context) error {
	return r.client.Health(ctx)
}

func (r *PocketBaseRepo) ListRegistrations(ctx context.Context, filter Filter) ([]*models.Player, error) {
	var clauses []string
	if filter.IdentityNumber != "" {
		clauses = append(clauses, "aadhar="+pocketbase.Quote(filter.IdentityNumber))
	}
	if filter.RegisteredBy != "" {
		clauses = append(clauses, "RegisteredBy="+pocketbase.Quote(filter.RegisteredBy))
	}
	if filter.Organisation != "" {
		clauses = append(clauses, "organisation="+pocketbase.Quote(filter.Organisation))
	}

	records, err := r.client.FullList(ctx, collectionPlayers, pocketbase.ListOptions{
		Filter: strings.Join(clauses, " && "),
		Sort:   "-created",
	})
	if err != nil {
		return nil, err
	}

	players := make([]*models.Player, 0, len(records))
	for _, rec := range records {
		players = append(players, playerFromRecord(rec))
	}
	return players, nil
}

func (r *PocketBaseRepo) GetRegistration(ctx context.Context, id string) (*models.Player, error) {
	rec, err := r.client.GetOne(ctx, collectionPlayers, id)
	if err != nil {
		return nil, mapPocketBaseErr(err)
	}
	return playerFromRecord(rec), nil
}

func (r *PocketBaseRepo) CreateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	rec, err := r.client.Create(ctx, collectionPlayers, playerRecord(player))
	if err != nil {
		return nil, mapPocketBaseErr(err)
	}
	return playerFromRecord(rec), nil
}

func (r *PocketBaseRepo) UpdateRegistration(ctx context.Context, player *models.Player) (*models.Player, error) {
	rec, err := r.client.Update(ctx, collectionPlayers, player.ID, playerRecord(player))
	if err != nil {
		return nil, mapPocketBaseErr(err)
	}
	return playerFromRecord(rec), nil
}

func (r *PocketBaseRepo) DeleteRegistration(ctx context.Context, id string) error {
	return mapPocketBaseErr(r.client.Delete(ctx, collectionPlayers, id))
}

func (r *PocketBaseRepo) WithIdentityTx(ctx context.Context, identityNumber string, fn func(tx RegistrationTx) error) error {
	return fn(r)
}

func (r *PocketBaseRepo) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	rec, err := r.client.First(ctx, collectionSettings, "key="+pocketbase.Quote(key))
	if err != nil {
		return nil, mapPocketBaseErr(err)
	}
	return &models.Setting{Key: rec.String("key"), Value: rec.String("value"), Updated: rec.Time("updated")}, nil
}

func (r *PocketBaseRepo) SetSetting(ctx context.Context, key, value string) error {
	rec, err := r.client.First(ctx, collectionSettings, "key="+pocketbase.Quote(key))
	if errors.Is(err, pocketbase.ErrNotFound) {
		_, err = r.client.Create(ctx, collectionSettings, pocketbase.Record{"key": key, "value": value})
		return err
	}
	if err != nil {
		return err
	}
	_, err = r.client.Update(ctx, collectionSettings, rec.String("id"), pocketbase.Record{"value": value})
	return err
}

func (r *PocketBaseRepo) ListNews(ctx context.Context, page, perPage int) ([]*models.NewsItem, int, error) {
	result, err := r.client.List(ctx, collectionNews, pocketbase.ListOptions{Page: page, PerPage: perPage, Sort: "-created"})
	if err != nil {
		return nil, 0, err
	}
	items := make([]*models.NewsItem, 0, len(result.Items))
	for _, rec := range result.Items {
		items = append(items, &models.NewsItem{ID: rec.String("id"), Text: rec.String("news"), Created: rec.Time("created")})
	}
	return items, result.TotalItems, nil
}

func (r *PocketBaseRepo) CreateNews(ctx context.Context, text string) (*models.NewsItem, error) {
	rec, err := r.client.Create(ctx, collectionNews, pocketbase.Record{"news": text})
	if err != nil {
		return nil, err
	}
	return &models.NewsItem{ID: rec.String("id"), Text: rec.String("news"), Created: rec.Time("created")}, nil
}

func mapPocketBaseErr(err error) error {
	if errors.Is(err, pocketbase.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func playerRecord(p *models.Player) pocketbase.Record {
	rec := pocketbase.Record{
		"aadhar":         p.IdentityNumber,
		"organisation":   p.Organisation,
		"event":          p.EventLabel(),
		"name":           p.Name,
		"age":            p.Age,
		"dateOfBirth":    p.DateOfBirth,
		"bloodGroup":     p.BloodGroup,
		"tShirtSize":     p.TShirtSize,
		"mobile":         p.Mobile,
		"employeeId":     p.EmployeeID,
		"mealType":       p.MealType,
		"healthIssues":   p.HealthIssues,
		"profilePicture": p.ProfilePicture,
		"employeeIDCard": p.IDCard,
		"RegisteredBy":   p.RegisteredBy,
	}
	if tp := p.TravelPlan; tp != nil {
		rec["modeOfTravel"] = tp.Mode
		rec["travelPlan"] = tp.Document
		rec["travelPlanName"] = tp.DocumentName
		rec["travelPlanType"] = tp.DocumentType
		rec["travelPlanUpdated"] = tp.UpdatedAt.UTC().Format(time.RFC3339Nano)
	} else {
		rec["modeOfTravel"] = ""
		rec["travelPlan"] = nil
		rec["travelPlanName"] = ""
		rec["travelPlanType"] = ""
		rec["travelPlanUpdated"] = ""
	}
	return rec
}

// playerFromRecord never drops a record: an event label that does not parse is
// kept as RawEvent so quota checks still count it.
func playerFromRecord(rec pocketbase.Record) *models.Player {
	label := rec.String("event")
	event, ok := models.ParseEventLabel(label)
	if !ok {
		logger.Warningf("Player record %s has unstructured event %q", rec.String("id"), label)
	}
	p := &models.Player{
		ID:             rec.String("id"),
		IdentityNumber: rec.String("aadhar"),
		Organisation:   rec.String("organisation"),
		Event:          event,
		Name:           rec.String("name"),
		Age:            rec.Int("age"),
		DateOfBirth:    rec.String("dateOfBirth"),
		BloodGroup:     rec.String("bloodGroup"),
		TShirtSize:     rec.String("tShirtSize"),
		Mobile:         rec.String("mobile"),
		EmployeeID:     rec.String("employeeId"),
		MealType:       rec.String("mealType"),
		HealthIssues:   rec.String("healthIssues"),
		ProfilePicture: rec.String("profilePicture"),
		IDCard:         rec.String("employeeIDCard"),
		RegisteredBy:   rec.String("RegisteredBy"),
		Created:        rec.Time("created"),
		Updated:        rec.Time("updated"),
	}
	if mode := rec.String("modeOfTravel"); mode != "" {
		p.TravelPlan = &models.TravelPlan{
			Mode:         mode,
			Document:     rec.String("travelPlan"),
			DocumentName: rec.String("travelPlanName"),
			DocumentType: rec.String("travelPlanType"),
			UpdatedAt:    rec.Time("travelPlanUpdated"),
		}
	}
	if !ok {
		p.RawEvent = label
		if p.RawEvent == "" {
			p.RawEvent = "(no event)"
		}
	}
	return p
}
