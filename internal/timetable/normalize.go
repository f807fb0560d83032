package timetable

import (
	"cmp"
	"slices"

	"untisbot/internal/model"
)

// Normalize turns a day's fetched lessons into the ordered, gap-filled and
// cleaned-up slot sequence the report is rendered from.
func Normalize(lessons []model.Lesson, grid Grid) []Slot {
	return Cleanup(FillGaps(SortByStart(Classify(lessons)), grid))
}

// SortByStart returns a copy of slots stably sorted by start time. Slots
// with equal start times keep their relative order.
func SortByStart(slots []Slot) []Slot {
	out := slices.Clone(slots)
	slices.SortStableFunc(out, func(a, b Slot) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}

// FillGaps inserts a free slot for every grid period whose start time does
// not occur in the (sorted) input. A free slot goes before the first slot
// starting at or after the period, or at the end.
//
// Only exact start-time matches count: a lesson starting at 750 does not
// occupy the 745 period, and both will appear side by side.
func FillGaps(slots []Slot, grid Grid) []Slot {
	out := slices.Clone(slots)
	for _, period := range grid {
		idx := slices.IndexFunc(out, func(s Slot) bool { return s.Start >= period.Start })
		if idx >= 0 && out[idx].Start == period.Start {
			continue
		}
		if idx < 0 {
			idx = len(out)
		}
		out = slices.Insert(out, idx, freeSlot(period.Start))
	}
	return out
}

// Cleanup collapses cancellation / relocation runs that describe a single
// moved lesson, so the report shows the relocation once instead of one
// extra cancelled line per touched period.
//
// Patterns, with C = cancelled and R = relocated, matched at i on the
// input sequence (never on partially cleaned state):
//
//	before:  [i-1]!=R  C R C  -> drop i, i+2
//	after:   [i-1]==R  C R C  -> drop i, i+2
//	double:  R C C R          -> drop i, i+1 (only if before/after missed)
//
// i ranges over 1..len-3, so the first slot and the last two never start
// a pattern.
func Cleanup(slots []Slot) []Slot {
	drop := make(map[int]bool)

	for i := 1; i < len(slots)-2; i++ {
		prev := slots[i-1].Event
		cur := slots[i].Event
		next := slots[i+1].Event
		next2 := slots[i+2].Event

		relocatedBetween := cur == EventCancelled && next == EventRelocated && next2 == EventCancelled
		before := relocatedBetween && prev != EventRelocated
		after := relocatedBetween && prev == EventRelocated
		double := !before && !after &&
			cur == EventCancelled && next == EventCancelled &&
			prev == EventRelocated && next2 == EventRelocated

		switch {
		case before, after:
			drop[i] = true
			drop[i+2] = true
		case double:
			drop[i] = true
			drop[i+1] = true
		}
	}

	if len(drop) == 0 {
		return slices.Clone(slots)
	}

	out := make([]Slot, 0, len(slots)-len(drop))
	for i, s := range slots {
		if drop[i] {
			continue
		}
		out = append(out, s)
	}
	return out
}
