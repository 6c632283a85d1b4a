package eligibility

import "strings"

// DefaultTeamKeywords classify an event as a team event when its label contains one.
var DefaultTeamKeywords = []string{"Team", "Relay", "Hockey", "Football", "Basketball", "Volleyball", "Cricket"}

// Classifier splits events into team and solo events by keyword.
type Classifier struct {
	keywords []string
}

// NewClassifier builds a classifier for the given keywords. Matching is a
// case-insensitive substring test; blank keywords are ignored.
func NewClassifier(keywords []string) *Classifier {
	c := &Classifier{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	return c
}

// IsTeamEvent reports whether the label contains any team keyword.
func (c *Classifier) IsTeamEvent(label string) bool {
	label = strings.ToLower(label)
	for _, k := range c.keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}
