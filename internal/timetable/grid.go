package timetable

import (
	"errors"
	"fmt"
)

// GridEntry is one fixed lesson period: its start time in HMM / HHMM
// encoding and the label printed for it in the report.
type GridEntry struct {
	Start int    `yaml:"start" json:"start"`
	Label string `yaml:"label" json:"label"`
}

// Grid is the school-wide ordered list of daily lesson periods.
type Grid []GridEntry

// DefaultGrid returns the eight-period day used when the config does not
// override it.
func DefaultGrid() Grid {
	return Grid{
		{Start: 745, Label: "7:45 - 8:30"},
		{Start: 830, Label: "8:30 - 9:15"},
		{Start: 935, Label: "9:35 - 10:20"},
		{Start: 1020, Label: "10:20 - 11:05"},
		{Start: 1125, Label: "11:25 - 12:10"},
		{Start: 1210, Label: "12:10 - 12:55"},
		{Start: 1315, Label: "13:15 - 14:00"},
		{Start: 1400, Label: "14:00 - 14:45"},
	}
}

// Starts returns the grid's start times in order.
func (g Grid) Starts() []int {
	out := make([]int, len(g))
	for i, e := range g {
		out[i] = e.Start
	}
	return out
}

// Validate checks that the grid is non-empty, strictly ascending, uses
// plausible clock values and labels every period.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return errors.New("grid: no periods configured")
	}
	for i, e := range g {
		if e.Start < 0 || e.Start/100 > 23 || e.Start%100 > 59 {
			return fmt.Errorf("grid: period %d has invalid start %d", i, e.Start)
		}
		if e.Label == "" {
			return fmt.Errorf("grid: period %d (%d) has no label", i, e.Start)
		}
		if i > 0 && e.Start <= g[i-1].Start {
			return fmt.Errorf("grid: period %d start %d is not after %d", i, e.Start, g[i-1].Start)
		}
	}
	return nil
}
