package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untisbot/internal/model"
	"untisbot/internal/timetable"
)

const holidayFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//holidays//EN
BEGIN:VEVENT
UID:autumn@test
DTSTART;VALUE=DATE:20231030
DTEND;VALUE=DATE:20231104
SUMMARY:Herbstferien
END:VEVENT
BEGIN:VEVENT
UID:staff-day@test
DTSTART;VALUE=DATE:20230904
DTEND;VALUE=DATE:20230905
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;VALUE=DATE:20230911
SUMMARY:Pädagogischer Tag
END:VEVENT
BEGIN:VEVENT
SUMMARY:no uid
DTSTART;VALUE=DATE:20230906
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseICS(t *testing.T) {
	loc := time.UTC
	events, err := ParseICS(Source{ID: "holidays"}, crlf(holidayFeed), loc)
	require.NoError(t, err)
	require.Len(t, events, 2, "event without UID is skipped")

	autumn := events[0]
	assert.Equal(t, "autumn@test", autumn.UID)
	assert.True(t, autumn.AllDay)
	assert.Equal(t, time.Date(2023, time.October, 30, 0, 0, 0, 0, loc), autumn.Start)
	assert.Equal(t, time.Date(2023, time.November, 4, 0, 0, 0, 0, loc), autumn.End)

	staff := events[1]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", staff.RawRRule)
	require.Len(t, staff.ExDates, 1)
	assert.Equal(t, time.Date(2023, time.September, 11, 0, 0, 0, 0, loc), staff.ExDates[0])
}

func TestParseICS_Empty(t *testing.T) {
	_, err := ParseICS(Source{}, nil, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	loc := time.UTC
	events, err := ParseICS(Source{ID: "holidays"}, crlf(holidayFeed), loc)
	require.NoError(t, err)

	occ, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      time.Date(2023, time.September, 1, 0, 0, 0, 0, loc),
		RangeEnd:        time.Date(2023, time.December, 31, 0, 0, 0, 0, loc),
	})
	require.NoError(t, err)

	var keys []string
	for _, o := range occ {
		keys = append(keys, o.UID+" "+o.Start.Format("2006-01-02"))
	}
	assert.ElementsMatch(t, []string{
		"autumn@test 2023-10-30",
		"staff-day@test 2023-09-04",
		"staff-day@test 2023-09-18",
		"staff-day@test 2023-09-25",
	}, keys)

	for _, o := range occ {
		if o.UID == "autumn@test" {
			assert.True(t, o.Covers(time.Date(2023, time.November, 3, 7, 30, 0, 0, loc)))
			assert.False(t, o.Covers(time.Date(2023, time.November, 4, 7, 30, 0, 0, loc)))
		}
	}
}

func TestExpandOccurrences_BadRange(t *testing.T) {
	now := time.Now()
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestExpandOccurrences_Override(t *testing.T) {
	loc := time.UTC
	rid := time.Date(2023, time.September, 11, 0, 0, 0, 0, loc)
	events := []ParsedEvent{
		{
			UID: "weekly", Summary: "base", AllDay: true, RawRRule: "FREQ=WEEKLY;COUNT=2",
			Start: time.Date(2023, time.September, 4, 0, 0, 0, 0, loc),
			End:   time.Date(2023, time.September, 5, 0, 0, 0, 0, loc),
		},
		{
			UID: "weekly", Summary: "moved", AllDay: true, IsOverride: true, Recurrence: &rid,
			Start: time.Date(2023, time.September, 12, 0, 0, 0, 0, loc),
			End:   time.Date(2023, time.September, 13, 0, 0, 0, 0, loc),
		},
	}

	occ, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      time.Date(2023, time.September, 1, 0, 0, 0, 0, loc),
		RangeEnd:        time.Date(2023, time.September, 30, 0, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.Equal(t, "base", occ[0].Summary)
	assert.Equal(t, "moved", occ[1].Summary)
	assert.Equal(t, 12, occ[1].Start.Day())
}

func TestFetcher_FetchOne(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(holidayFeed))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(t.TempDir())
	src := Source{ID: "holidays", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	res, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.True(t, bytes.Contains(res.Body, []byte("Herbstferien")))

	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 serves the cached body")
	assert.True(t, bytes.Contains(res.Body, []byte("Herbstferien")))

	fail.Store(true)
	res, err = f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "server error falls back to cache")

	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_FetchAll_ReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(t.TempDir())
	res, errs := f.FetchAll(context.Background(), []Source{
		{ID: "gone", URL: srv.URL},
		{ID: "empty"},
	})
	assert.Empty(t, res)
	assert.Len(t, errs, 2)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestExport(t *testing.T) {
	loc := time.UTC
	day := time.Date(2023, time.September, 7, 0, 0, 0, 0, loc)

	slots := timetable.Normalize([]model.Lesson{
		{
			StartTime: 745, EndTime: 830, SubjectGroup: "DBK",
			Subjects: []model.Element{{Name: "DBK", LongName: "Datenbanken"}},
			Rooms:    []model.Element{{Name: "B121"}},
			Teachers: []model.Element{{LongName: "Hermes"}},
		},
		{
			StartTime: 830, EndTime: 915, SubjectGroup: "POL", Code: model.CodeCancelled,
			Subjects: []model.Element{{Name: "POL", LongName: "Politik"}},
			Teachers: []model.Element{{LongName: "Gauder"}},
		},
	}, timetable.DefaultGrid())

	out := Export(day, slots, loc)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2, "free slots are not exported")

	first := events[0]
	assert.Equal(t, "Datenbanken", first.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "B121", first.GetProperty(ical.ComponentPropertyLocation).Value)
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2023, time.September, 7, 7, 45, 0, 0, loc)))
	end, err := first.GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2023, time.September, 7, 8, 30, 0, 0, loc)))
	assert.Nil(t, first.GetProperty(ical.ComponentPropertyStatus))

	second := events[1]
	assert.Equal(t, "Politik", second.GetProperty(ical.ComponentPropertySummary).Value)
	require.NotNil(t, second.GetProperty(ical.ComponentPropertyStatus))
	assert.Equal(t, "CANCELLED", second.GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Contains(t, second.GetProperty(ical.ComponentPropertyDescription).Value, "cancelled")
}
