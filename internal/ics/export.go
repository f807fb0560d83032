package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"untisbot/internal/model"
	"untisbot/internal/timetable"
)

const productID = "-//untisbot//timetable//EN"

// Export renders a normalized day as an iCalendar feed. Free slots are left
// out; cancelled lessons are kept with STATUS:CANCELLED so calendar clients
// can strike them through.
func Export(day time.Time, slots []timetable.Slot, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	date := model.DateInt(day)
	stamp := time.Now().UTC()

	for i, s := range slots {
		if s.Free() {
			continue
		}

		start := model.ClockTime(day, s.Start, loc)
		end := start.Add(45 * time.Minute)
		if s.End > s.Start {
			end = model.ClockTime(day, s.End, loc)
		}

		ev := cal.AddEvent(fmt.Sprintf("%d-%d-%d@untisbot", date, s.Start, i))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summaryOf(s))
		if room := s.Room(); room.Name != "" {
			ev.SetLocation(room.Name)
		}
		if desc := descriptionOf(s); desc != "" {
			ev.SetDescription(desc)
		}
		if s.Event == timetable.EventCancelled {
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		}
	}

	return cal.Serialize()
}

func summaryOf(s timetable.Slot) string {
	subj := s.Subject()
	switch {
	case subj.LongName != "":
		return subj.LongName
	case subj.Name != "":
		return subj.Name
	default:
		return s.Signature
	}
}

func descriptionOf(s timetable.Slot) string {
	var parts []string
	if t := s.Teacher(); t.LongName != "" {
		parts = append(parts, t.LongName)
	}
	if s.Event != timetable.EventNone {
		parts = append(parts, s.Event.String())
	}
	if s.Description != "" {
		parts = append(parts, strings.Trim(s.Description, "*"))
	}
	if s.LessonText != "" {
		parts = append(parts, s.LessonText)
	}
	return strings.Join(parts, " | ")
}
