package services

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"sportsmeet/internal/eligibility"
	"sportsmeet/internal/models"
	"sportsmeet/internal/store"
)

// StatsService builds the admin overview and export.
type StatsService struct {
	store    store.RegistrationReader
	settings *SettingsService
	checker  *eligibility.Checker
}

func NewStatsService(st store.RegistrationReader, settings *SettingsService, checker *eligibility.Checker) *StatsService {
	return &StatsService{store: st, settings: settings, checker: checker}
}

func (s *StatsService) Stats(ctx context.Context) (*models.Stats, error) {
	players, err := s.store.ListRegistrations(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{TotalRegistrations: len(players)}
	people := make(map[string]struct{})
	byOrg := make(map[string]int)
	bySport := make(map[string]int)
	for _, p := range players {
		people[p.IdentityNumber] = struct{}{}
		byOrg[p.Organisation]++
		bySport[sportOf(p)]++
		if s.checker.IsTeamEvent(p.EventLabel()) {
			stats.TeamEntries++
		} else {
			stats.SoloEntries++
		}
	}
	stats.UniqueParticipants = len(people)
	stats.ByOrganisation = sortedCounts(byOrg)
	stats.BySport = sortedCounts(bySport)

	stats.RegistrationOpen = s.settings.IsRegistrationOpen(ctx)
	if stats.LastUpdated, err = s.settings.LastUpdated(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

var exportHeader = []string{
	"S.No", "Name", "Identity Number", "Organisation", "Sport", "Discipline", "Category", "Type",
	"Age", "Date of Birth", "Blood Group", "T-Shirt Size", "Mobile", "Employee ID", "Meal Type",
	"Health Issues", "Mode of Travel", "Registered By", "Registered At",
}

// WriteCSV writes every registration as CSV. Identity numbers are masked
// unless full is set.
func (s *StatsService) WriteCSV(ctx context.Context, w io.Writer, full bool) error {
	players, err := s.store.ListRegistrations(ctx, store.Filter{})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i, p := range players {
		identity := p.MaskedIdentity()
		if full {
			identity = p.IdentityNumber
		}
		kind := "Solo"
		if s.checker.IsTeamEvent(p.EventLabel()) {
			kind = "Team"
		}
		mode := ""
		if p.TravelPlan != nil {
			mode = p.TravelPlan.Mode
		}
		row := []string{
			strconv.Itoa(i + 1), p.Name, identity, p.Organisation,
			sportOf(p), p.Event.Discipline, p.Event.Category, kind,
			strconv.Itoa(p.Age), p.DateOfBirth, p.BloodGroup, p.TShirtSize, p.Mobile, p.EmployeeID, p.MealType,
			p.HealthIssues, mode, p.RegisteredBy, p.Created.Format("2006-01-02 15:04"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sortedCounts orders by count descending, then name.
func sortedCounts(m map[string]int) []models.NamedCount {
	out := make([]models.NamedCount, 0, len(m))
	for name, n := range m {
		out = append(out, models.NamedCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// sportOf falls back to the stored label for records without a structured event.
func sportOf(p *models.Player) string {
	if p.RawEvent != "" {
		return p.RawEvent
	}
	return p.Event.Sport
}
