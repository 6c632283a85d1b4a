package models

import "time"

// Account is the authenticated registrant acting on behalf of an organisation.
type Account struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Organisation string `json:"organisation"`
	Admin        bool   `json:"admin"`
}

// Setting is a single key/value row in the settings store.
type Setting struct {
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Updated time.Time `json:"updated"`
}

// NewsItem is an announcement shown on the home page.
type NewsItem struct {
	ID      string    `json:"id"`
	Text    string    `json:"news"`
	Links   []string  `json:"links,omitempty"`
	Created time.Time `json:"created"`
}

// Stats aggregates the registrations for the admin view.
type Stats struct {
	TotalRegistrations int          `json:"totalRegistrations"`
	UniqueParticipants int          `json:"uniqueParticipants"`
	SoloEntries        int          `json:"soloEntries"`
	TeamEntries        int          `json:"teamEntries"`
	ByOrganisation     []NamedCount `json:"byOrganisation"`
	BySport            []NamedCount `json:"bySport"`
	RegistrationOpen   bool         `json:"registrationOpen"`
	LastUpdated        *time.Time   `json:"lastUpdated,omitempty"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
