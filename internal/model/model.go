package model

import (
	"fmt"
	"time"
)

// Element is a teacher, room, subject or class reference inside a lesson,
// as returned by the WebUntis getTimetable call.
type Element struct {
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	LongName string `json:"longname,omitempty"`

	// OrgID / OrgName are only set when the element replaced the
	// originally scheduled one (e.g. a substitute teacher).
	OrgID   int    `json:"orgid,omitempty"`
	OrgName string `json:"orgname,omitempty"`
}

// Lesson codes reported by WebUntis.
const (
	CodeCancelled = "cancelled"
	CodeIrregular = "irregular"
)

// Lesson represents a single lesson occurrence for one day, as fetched.
type Lesson struct {
	ID   int `json:"id"`
	Date int `json:"date"` // YYYYMMDD

	// StartTime / EndTime use the school-local HMM / HHMM encoding
	// (745 means 07:45), not minutes since midnight.
	StartTime int `json:"startTime"`
	EndTime   int `json:"endTime"`

	// SubjectGroup is the opaque course signature, e.g. "POL_IAF21_GD".
	SubjectGroup string `json:"sg,omitempty"`

	Classes  []Element `json:"kl,omitempty"`
	Teachers []Element `json:"te,omitempty"`
	Subjects []Element `json:"su,omitempty"`
	Rooms    []Element `json:"ro,omitempty"`

	Code           string `json:"code,omitempty"`
	SubstText      string `json:"substText,omitempty"`
	LessonText     string `json:"lstext,omitempty"`
	StatisticFlags string `json:"statflags,omitempty"`
}

// Holiday is a school holiday range. StartDate / EndDate are inclusive
// YYYYMMDD values.
type Holiday struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	LongName  string `json:"longName"`
	StartDate int    `json:"startDate"`
	EndDate   int    `json:"endDate"`
}

// Contains reports whether the given YYYYMMDD date lies in the holiday.
func (h Holiday) Contains(date int) bool {
	return date >= h.StartDate && date <= h.EndDate
}

// DateInt converts t to the YYYYMMDD integer form used on the wire.
func DateInt(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ClockTime resolves an HMM / HHMM time on the given day in loc.
func ClockTime(day time.Time, hhmm int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hhmm/100, hhmm%100, 0, 0, loc)
}

// FormatClock renders an HMM / HHMM value as "H:MM".
func FormatClock(hhmm int) string {
	return fmt.Sprintf("%d:%02d", hhmm/100, hhmm%100)
}

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion, used for holiday feeds.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies one occurrence of a recurring event.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Covers reports whether the occurrence overlaps the calendar day of t.
// End is exclusive, matching all-day DTEND semantics.
func (o Occurrence) Covers(t time.Time) bool {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return o.Start.Before(dayEnd) && o.End.After(dayStart)
}
