package services

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"sportsmeet/internal/catalog"
)

// ScheduleService publishes the meet as an iCalendar feed.
type ScheduleService struct {
	catalog *catalog.Catalog
	stamp   time.Time
}

func NewScheduleService(cat *catalog.Catalog) *ScheduleService {
	return &ScheduleService{catalog: cat, stamp: time.Now().UTC()}
}

// DaySchedule groups the sports held on one meet day.
type DaySchedule struct {
	Day    int
	Date   time.Time
	Sports []string
}

// Days lists the meet days in order with their sports.
func (s *ScheduleService) Days() []DaySchedule {
	byDay := map[int][]string{}
	for _, sport := range s.catalog.Sports {
		byDay[sport.Day] = append(byDay[sport.Day], sport.Name)
	}
	var days []DaySchedule
	for day := 1; ; day++ {
		date, ok := s.catalog.DayDate(day)
		if !ok {
			break
		}
		days = append(days, DaySchedule{Day: day, Date: date, Sports: byDay[day]})
	}
	return days
}

// ICS renders one all-day event for the meet and one per meet day.
func (s *ScheduleService) ICS() string {
	meet := s.catalog.Meet
	uid := strings.ToLower(meet.ShortName)

	cal := ics.NewCalendar()
	cal.SetProductId("sportsmeet " + meet.ShortName)
	cal.SetMethod(ics.MethodPublish)
	cal.SetName(meet.Title)
	cal.SetXWRTimezone(s.catalog.Location().String())

	start, end := s.catalog.Dates()
	if !start.IsZero() {
		e := cal.AddEvent(fmt.Sprintf("meet@%s", uid))
		e.SetDtStampTime(s.stamp)
		e.SetSummary(meet.Title)
		e.SetAllDayStartAt(start)
		e.SetAllDayEndAt(end.AddDate(0, 0, 1))
		e.SetTimeTransparency(ics.TransparencyTransparent)
		e.AddProperty(ics.ComponentPropertyLocation, meet.Venue)
	}

	for _, d := range s.Days() {
		if len(d.Sports) == 0 {
			continue
		}
		e := cal.AddEvent(fmt.Sprintf("day-%d@%s", d.Day, uid))
		e.SetDtStampTime(s.stamp)
		e.SetSummary(fmt.Sprintf("%s Day %d: %s", meet.ShortName, d.Day, strings.Join(d.Sports, ", ")))
		e.SetAllDayStartAt(d.Date)
		e.SetAllDayEndAt(d.Date.AddDate(0, 0, 1))
		e.AddProperty(ics.ComponentPropertyLocation, meet.Venue)
		e.SetProperty("X-MICROSOFT-CDO-ALLDAYEVENT", "TRUE")
	}
	return cal.Serialize()
}
