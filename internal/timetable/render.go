package timetable

import (
	"fmt"
	"strings"
)

// Language selects one of the built-in label sets.
type Language string

const (
	German  Language = "de"
	English Language = "en"
)

// Labels holds the literal words used in a rendered report.
type Labels struct {
	Header       string
	Cancelled    string
	Relocated    string
	Substitution string
	Free         string
	Holiday      string
}

// LabelsFor returns the labels for lang. Anything but English yields the
// German labels.
func LabelsFor(lang Language) Labels {
	if lang == English {
		return Labels{
			Header:       "Timetable for **TODAY**",
			Cancelled:    "CANCELLED",
			Relocated:    "RELOCATED",
			Substitution: "SUBSTITUTION",
			Free:         "FREE",
			Holiday:      "No school today",
		}
	}
	return Labels{
		Header:       "Stundenplan für **HEUTE**",
		Cancelled:    "ENTFALL",
		Relocated:    "VERLEGUNG",
		Substitution: "VERTRETUNG",
		Free:         "FREI",
		Holiday:      "Heute ist schulfrei",
	}
}

const placeholder = "-"

// Render formats one line per grid period. Line i uses grid[i].Label and
// slots[i]; once cleanup has shortened the day below the grid length the
// missing trailing lines are left out.
func Render(slots []Slot, grid Grid, labels Labels) string {
	var b strings.Builder
	for i, period := range grid {
		if i >= len(slots) {
			break
		}
		b.WriteString(renderLine(period.Label, slots[i], labels))
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderLine(label string, s Slot, labels Labels) string {
	if s.Free() {
		return fmt.Sprintf("%s | %s", label, labels.Free)
	}

	lesson := fmt.Sprintf("%s | %s | %s | %s",
		label,
		orPlaceholder(s.Subject().LongName),
		orPlaceholder(s.Room().Name),
		orPlaceholder(s.Teacher().LongName),
	)

	switch s.Event {
	case EventCancelled:
		return fmt.Sprintf("~~%s ~~ | **%s**", lesson, labels.Cancelled)
	case EventRelocated:
		return fmt.Sprintf("%s | **%s**", lesson, labels.Relocated)
	case EventSubstitution:
		line := fmt.Sprintf("%s | **%s**", lesson, labels.Substitution)
		if s.Description != "" {
			line += " | " + s.Description
		}
		return line
	default:
		return lesson
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
