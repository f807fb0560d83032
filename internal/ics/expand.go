package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "untisbot/internal/log"
	"untisbot/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to (time.Local
	// when nil).
	DisplayLocation *time.Location

	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules.
	MaxOccurrencesPerEvent int
}

// ExpandOccurrences expands parsed events (single, RRULE with EXDATE, and
// RECURRENCE-ID overrides) into occurrences intersecting the range.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overrides := make(map[string][]ParsedEvent)
	var bases []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	var out []model.Occurrence
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, occurrenceOf(applyOverride(ev, overrides[ev.UID], ev.Start), cfg.DisplayLocation))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}
	return out, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the window by the event length so occurrences that started
	// before RangeStart but still run into it are kept.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Error("expand: occurrences truncated", errors.New("max occurrences reached"),
			"uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		inst = applyOverride(inst, overrides, s)
		if overlaps(inst.Start, inst.End, cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, occurrenceOf(inst, cfg.DisplayLocation))
		}
	}
	return out
}

// applyOverride returns the override whose RECURRENCE-ID equals start, or ev.
func applyOverride(ev ParsedEvent, overrides []ParsedEvent, start time.Time) ParsedEvent {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov
		}
	}
	return ev
}

func occurrenceOf(ev ParsedEvent, loc *time.Location) model.Occurrence {
	start := ev.Start.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         ev.End.In(loc),
	}
}

// overlaps treats [aStart, aEnd) and [bStart, bEnd] as intervals.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		aEnd = aStart.Add(time.Nanosecond)
	}
	return !aStart.After(bEnd) && aEnd.After(bStart)
}
