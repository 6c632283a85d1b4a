package catalog

import (
	_ "embed"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"sportsmeet/internal/models"
)

const dateLayout = "2006-01-02"

//go:embed events.yaml
var eventsYAML []byte

// Meet describes the sports meet itself.
type Meet struct {
	Title     string `yaml:"title"`
	ShortName string `yaml:"shortName"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	Timezone  string `yaml:"timezone"`
	Venue     string `yaml:"venue"`
}

type Discipline struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
}

// Sport is one top-level entry of the taxonomy. Day is the 1-based meet day on
// which the sport is held.
type Sport struct {
	Name        string       `yaml:"name"`
	Icon        string       `yaml:"icon"`
	Day         int          `yaml:"day"`
	Disciplines []Discipline `yaml:"disciplines"`
}

// Catalog is the immutable Sport -> Discipline -> [Category] table.
type Catalog struct {
	Meet          Meet     `yaml:"meet"`
	Organisations []string `yaml:"organisations"`
	TeamKeywords  []string `yaml:"teamKeywords"`
	Sports        []Sport  `yaml:"sports"`

	index map[models.EventRef]struct{}
	loc   *time.Location
	start time.Time
	end   time.Time
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog embedded in the binary. The embedded file is part of
// the build, so a parse failure is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(eventsYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded events.yaml: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load parses a catalog document and builds its lookup index.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Sports) == 0 {
		return nil, fmt.Errorf("catalog has no sports")
	}

	c.loc = time.UTC
	if c.Meet.Timezone != "" {
		loc, err := time.LoadLocation(c.Meet.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid meet timezone %q: %w", c.Meet.Timezone, err)
		}
		c.loc = loc
	}
	if c.Meet.Start != "" {
		start, err := time.ParseInLocation(dateLayout, c.Meet.Start, c.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid meet start: %w", err)
		}
		end := start
		if c.Meet.End != "" {
			if end, err = time.ParseInLocation(dateLayout, c.Meet.End, c.loc); err != nil {
				return nil, fmt.Errorf("invalid meet end: %w", err)
			}
		}
		if end.Before(start) {
			return nil, fmt.Errorf("meet ends before it starts")
		}
		c.start, c.end = start, end
	}

	c.index = make(map[models.EventRef]struct{})
	for _, s := range c.Sports {
		for _, d := range s.Disciplines {
			for _, cat := range d.Categories {
				ref := models.EventRef{Sport: s.Name, Discipline: d.Name, Category: cat}
				if _, dup := c.index[ref]; dup {
					return nil, fmt.Errorf("duplicate event %q", ref.Label())
				}
				c.index[ref] = struct{}{}
			}
		}
	}
	return &c, nil
}

// Contains reports whether the event is a valid entry of the taxonomy.
func (c *Catalog) Contains(ref models.EventRef) bool {
	_, ok := c.index[ref]
	return ok
}

// Sport returns the named sport.
func (c *Catalog) Sport(name string) (Sport, bool) {
	for _, s := range c.Sports {
		if s.Name == name {
			return s, true
		}
	}
	return Sport{}, false
}

func (c *Catalog) SportNames() []string {
	names := make([]string, 0, len(c.Sports))
	for _, s := range c.Sports {
		names = append(names, s.Name)
	}
	return names
}

// Events lists every event of the taxonomy in catalog order.
func (c *Catalog) Events() []models.EventRef {
	refs := make([]models.EventRef, 0, len(c.index))
	for _, s := range c.Sports {
		for _, d := range s.Disciplines {
			for _, cat := range d.Categories {
				refs = append(refs, models.EventRef{Sport: s.Name, Discipline: d.Name, Category: cat})
			}
		}
	}
	return refs
}

func (c *Catalog) Location() *time.Location {
	return c.loc
}

// Dates returns the first and last day of the meet. Both are zero when the
// catalog carries no meet dates.
func (c *Catalog) Dates() (time.Time, time.Time) {
	return c.start, c.end
}

// DayDate returns the calendar date of a 1-based meet day.
func (c *Catalog) DayDate(day int) (time.Time, bool) {
	if c.start.IsZero() || day < 1 {
		return time.Time{}, false
	}
	d := c.start.AddDate(0, 0, day-1)
	if d.After(c.end) {
		return time.Time{}, false
	}
	return d, true
}
