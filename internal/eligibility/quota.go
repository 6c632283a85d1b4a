package eligibility

// Limits caps how many events one participant may enter system-wide.
type Limits struct {
	MaxSolo int
	MaxTeam int
}

var DefaultLimits = Limits{MaxSolo: 5, MaxTeam: 3}

// Counts is the number of solo and team events in a set of event labels.
type Counts struct {
	Solo int
	Team int
}

func (c Counts) Total() int {
	return c.Solo + c.Team
}

// Checker decides whether a participant may be entered into another event.
type Checker struct {
	classifier *Classifier
	limits     Limits
}

func NewChecker(classifier *Classifier, limits Limits) *Checker {
	if classifier == nil {
		classifier = NewClassifier(DefaultTeamKeywords)
	}
	if limits.MaxSolo <= 0 {
		limits.MaxSolo = DefaultLimits.MaxSolo
	}
	if limits.MaxTeam <= 0 {
		limits.MaxTeam = DefaultLimits.MaxTeam
	}
	return &Checker{classifier: classifier, limits: limits}
}

func (c *Checker) Limits() Limits {
	return c.limits
}

func (c *Checker) IsTeamEvent(label string) bool {
	return c.classifier.IsTeamEvent(label)
}

// CountByType partitions the labels into solo and team events. Duplicates are
// counted individually.
func (c *Checker) CountByType(events []string) Counts {
	var counts Counts
	for _, e := range events {
		if c.classifier.IsTeamEvent(e) {
			counts.Team++
		} else {
			counts.Solo++
		}
	}
	return counts
}

// Check decides whether identityNumber may be entered into candidate given the
// events already on file for that person across all organisations. It returns
// nil when the entry is allowed and a *Rejection otherwise.
func (c *Checker) Check(identityNumber, candidate string, existing []string) error {
	if len(existing) == 0 {
		return nil
	}
	for _, e := range existing {
		if e == candidate {
			return &Rejection{Reason: DuplicateEvent, Event: candidate}
		}
	}

	counts := c.CountByType(existing)
	if c.classifier.IsTeamEvent(candidate) {
		if counts.Team >= c.limits.MaxTeam {
			return &Rejection{Reason: TeamQuotaExceeded, Event: candidate, Current: counts.Team, Limit: c.limits.MaxTeam}
		}
		return nil
	}
	if counts.Solo >= c.limits.MaxSolo {
		return &Rejection{Reason: SoloQuotaExceeded, Event: candidate, Current: counts.Solo, Limit: c.limits.MaxSolo}
	}
	return nil
}
