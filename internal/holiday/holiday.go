package holiday

import (
	"context"
	"errors"
	"time"

	"untisbot/internal/ics"
	appLog "untisbot/internal/log"
	"untisbot/internal/model"
)

// Checker decides whether a day is a school holiday, from WebUntis
// holiday ranges and optional ICS feeds.
type Checker struct {
	fetcher *ics.Fetcher
	sources []ics.Source
	loc     *time.Location
}

// NewChecker creates a Checker. fetcher may be nil when no feeds are used.
func NewChecker(fetcher *ics.Fetcher, sources []ics.Source, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.Local
	}
	return &Checker{fetcher: fetcher, sources: sources, loc: loc}
}

// Check reports whether day is a holiday and, if so, its name. WebUntis
// holidays are checked first; feed failures are logged and ignored.
func (c *Checker) Check(ctx context.Context, day time.Time, untisHolidays []model.Holiday) (bool, string) {
	date := model.DateInt(day)
	for _, h := range untisHolidays {
		if h.Contains(date) {
			return true, firstNonEmpty(h.LongName, h.Name)
		}
	}

	if c == nil || c.fetcher == nil || len(c.sources) == 0 {
		return false, ""
	}

	occ, err := c.feedOccurrences(ctx, day)
	if err != nil {
		appLog.Error("holiday feeds unavailable", err)
	}
	for _, o := range occ {
		if o.AllDay && o.Covers(day.In(c.loc)) {
			return true, o.Summary
		}
	}
	return false, ""
}

func (c *Checker) feedOccurrences(ctx context.Context, day time.Time) ([]model.Occurrence, error) {
	results, errs := c.fetcher.FetchAll(ctx, c.sources)

	var events []ics.ParsedEvent
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body, c.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, parsed...)
	}

	local := day.In(c.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	occ, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: c.loc,
		RangeStart:      dayStart,
		RangeEnd:        dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond),
	})
	if err != nil {
		errs = append(errs, err)
	}
	return occ, errors.Join(errs...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
