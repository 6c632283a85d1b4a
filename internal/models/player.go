package models

import (
	"fmt"
	"strings"
	"time"
)

// EventRef identifies a single competition entry in the event catalog.
// The display label is always derived from the triple, never the other way round.
type EventRef struct {
	Sport      string `json:"sport"`
	Discipline string `json:"discipline"`
	Category   string `json:"category"`
}

// Label renders the event as "<Sport> - <Discipline> (<Category>)".
func (e EventRef) Label() string {
	return fmt.Sprintf("%s - %s (%s)", e.Sport, e.Discipline, e.Category)
}

// IsZero reports whether no part of the event is set.
func (e EventRef) IsZero() bool {
	return e.Sport == "" && e.Discipline == "" && e.Category == ""
}

// ParseEventLabel splits a legacy label back into its triple. Records written by
// older clients only carry the label, so this is the single place it gets parsed.
func ParseEventLabel(label string) (EventRef, bool) {
	label = strings.TrimSpace(label)
	sport, rest, ok := strings.Cut(label, " - ")
	if !ok || !strings.HasSuffix(rest, ")") {
		return EventRef{}, false
	}
	open := strings.LastIndex(rest, " (")
	if open < 0 {
		return EventRef{}, false
	}
	ref := EventRef{
		Sport:      strings.TrimSpace(sport),
		Discipline: strings.TrimSpace(rest[:open]),
		Category:   strings.TrimSpace(rest[open+2 : len(rest)-1]),
	}
	if ref.Sport == "" || ref.Discipline == "" || ref.Category == "" {
		return EventRef{}, false
	}
	return ref, true
}

// TravelPlan holds the optional logistics attached to a registration.
type TravelPlan struct {
	Mode         string    `json:"modeOfTravel"`
	Document     string    `json:"travelPlan"`
	DocumentName string    `json:"travelPlanName"`
	DocumentType string    `json:"travelPlanType"`
	UpdatedAt    time.Time `json:"travelPlanUpdated"`
}

// Player is one registration record: a single person entered into a single event
// by an organisation's registrant. A person appears once per event entered.
type Player struct {
	ID             string      `json:"id"`
	IdentityNumber string      `json:"identityNumber"`
	Organisation   string      `json:"organisation"`
	Event          EventRef    `json:"event"`
	RawEvent       string      `json:"rawEvent,omitempty"`
	Name           string      `json:"name"`
	Age            int         `json:"age"`
	DateOfBirth    string      `json:"dateOfBirth,omitempty"`
	BloodGroup     string      `json:"bloodGroup"`
	TShirtSize     string      `json:"tShirtSize,omitempty"`
	Mobile         string      `json:"mobile"`
	EmployeeID     string      `json:"employeeId"`
	MealType       string      `json:"mealType"`
	HealthIssues   string      `json:"healthIssues,omitempty"`
	ProfilePicture string      `json:"profilePicture,omitempty"`
	IDCard         string      `json:"employeeIDCard,omitempty"`
	TravelPlan     *TravelPlan `json:"travel,omitempty"`
	RegisteredBy   string      `json:"registeredBy"`
	Created        time.Time   `json:"created"`
	Updated        time.Time   `json:"updated"`
}

// EventLabel is the label the record counts under. Stored labels that never
// parsed into an EventRef are kept verbatim in RawEvent.
func (p *Player) EventLabel() string {
	if p.RawEvent != "" {
		return p.RawEvent
	}
	return p.Event.Label()
}

// MaskedIdentity shows only the last four digits of the identity number.
func (p *Player) MaskedIdentity() string {
	return MaskIdentity(p.IdentityNumber)
}

func MaskIdentity(identity string) string {
	if len(identity) < 4 {
		return "N/A"
	}
	return "****" + identity[len(identity)-4:]
}

var (
	BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	MealTypes   = []string{"Veg", "Non-Veg", "Both", "None"}
	TShirtSizes = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL"}
	TravelModes = []string{"Air", "Train", "Bus", "Own Vehicle"}
)
