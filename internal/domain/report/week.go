// Package report aggregates stored orders into weekly business reports and
// dashboard statistics.
package report

import (
	"fmt"
	"time"
)

// DefaultHistoryWeeks is the number of windows listed by History when the
// caller does not ask for a specific count.
const DefaultHistoryWeeks = 4

// Period is a closed time window with a human readable description.
type Period struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

// Contains reports whether t falls inside the window, bounds included.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// ID returns the stable report identifier of the window.
func (p Period) ID() string {
	return "weekly-" + p.Start.Format(time.DateOnly)
}

// HistoryEntry describes a past window that can be generated on demand.
type HistoryEntry struct {
	ID          string `json:"id"`
	Period      Period `json:"period"`
	CanGenerate bool   `json:"canGenerate"`
}

// Aggregator computes reports in a fixed business time zone. Day boundaries,
// week windows and daily buckets are all evaluated in that zone.
type Aggregator struct {
	loc *time.Location
}

// New creates an Aggregator for loc. A nil loc means UTC.
func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Location returns the business time zone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// WeekRange returns the Saturday to Friday window containing ref. A Friday
// belongs to the window starting the next day.
func (a *Aggregator) WeekRange(ref time.Time) Period {
	day := a.startOfDay(ref)

	var offset int
	switch wd := day.Weekday(); wd {
	case time.Friday:
		offset = 1
	case time.Saturday:
		offset = 0
	default:
		offset = -(int(wd) + 1)
	}

	start := day.AddDate(0, 0, offset)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return Period{
		Start:       start,
		End:         end,
		Description: fmt.Sprintf("Semana del %s al %s", localDate(start), localDate(end)),
	}
}

// History lists the windows of the last weeks, most recent first.
func (a *Aggregator) History(now time.Time, weeks int) []HistoryEntry {
	if weeks <= 0 {
		weeks = DefaultHistoryWeeks
	}
	out := make([]HistoryEntry, 0, weeks)
	for i := 0; i < weeks; i++ {
		p := a.WeekRange(now.AddDate(0, 0, -7*i))
		out = append(out, HistoryEntry{ID: p.ID(), Period: p, CanGenerate: true})
	}
	return out
}

// ParseDate parses a date-only (2006-01-02) or RFC 3339 reference in the
// business time zone.
func (a *Aggregator) ParseDate(v string) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, a.loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (a *Aggregator) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(a.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

func (a *Aggregator) dayKey(t time.Time) string {
	return t.In(a.loc).Format(time.DateOnly)
}

// localDate renders d/m/yyyy, the Spanish short date form.
func localDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
