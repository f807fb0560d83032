package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"untisbot/internal/model"
	"untisbot/internal/timetable"
	"untisbot/internal/untis"
	"untisbot/internal/webhook"
)

type fakeFetcher struct {
	day untis.Day
	err error
}

func (f *fakeFetcher) FetchDay(_ context.Context, day time.Time) (untis.Day, error) {
	out := f.day
	out.Date = day
	return out, f.err
}

type fakeHolidays struct {
	holiday bool
	name    string
	seen    []model.Holiday
}

func (f *fakeHolidays) Check(_ context.Context, _ time.Time, h []model.Holiday) (bool, string) {
	f.seen = h
	return f.holiday, f.name
}

type fakeDeliverer struct {
	sent []webhook.Message
	err  error
}

func (f *fakeDeliverer) Deliver(_ context.Context, msg webhook.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

var testDay = time.Date(2023, time.September, 7, 6, 30, 0, 0, time.UTC)

func dbk() model.Lesson {
	return model.Lesson{
		StartTime: 745, EndTime: 830, SubjectGroup: "DBK",
		Subjects: []model.Element{{Name: "DBK", LongName: "Datenbanken"}},
		Rooms:    []model.Element{{Name: "B121"}},
		Teachers: []model.Element{{LongName: "Hermes"}},
	}
}

func TestRunner_Run_Delivers(t *testing.T) {
	d := &fakeDeliverer{}
	r := NewRunner(&fakeFetcher{day: untis.Day{Lessons: []model.Lesson{dbk()}}}, &fakeHolidays{}, d, Options{
		Labels:   timetable.LabelsFor(timetable.German),
		Username: "Stundenplan",
	})

	rep, err := r.Run(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	assert.Equal(t, "Stundenplan für **HEUTE**", msg.Header)
	assert.Equal(t, "Stundenplan", msg.Username)
	assert.True(t, strings.HasPrefix(msg.Body, "7:45 - 8:30 | Datenbanken | B121 | Hermes\n\n"), msg.Body)
	assert.Equal(t, 8, strings.Count(msg.Body, "\n\n"))
	assert.Len(t, rep.Slots, 8)
	assert.Equal(t, msg.Body, rep.Body)
	assert.Equal(t, msg.Header+"\n\n"+msg.Body, rep.Text())
}

func TestRunner_Run_FetchFailure(t *testing.T) {
	d := &fakeDeliverer{}
	cause := errors.New("login refused")
	r := NewRunner(&fakeFetcher{err: cause}, nil, d, Options{})

	rep, err := r.Run(context.Background(), testDay)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, d.sent, "nothing is delivered when fetching fails")
}

func TestRunner_Run_DeliveryFailureKeepsReport(t *testing.T) {
	cause := errors.New("429")
	d := &fakeDeliverer{err: cause}
	r := NewRunner(&fakeFetcher{}, nil, d, Options{})

	rep, err := r.Run(context.Background(), testDay)
	assert.ErrorIs(t, err, ErrDeliver)
	assert.ErrorIs(t, err, cause)
	require.NotNil(t, rep)
	assert.Equal(t, 8, strings.Count(rep.Body, "FREI"))
	assert.Len(t, d.sent, 1, "no retry")
}

func TestRunner_Run_Holiday(t *testing.T) {
	untisHolidays := []model.Holiday{{Name: "HF", StartDate: 20231030, EndDate: 20231103}}
	h := &fakeHolidays{holiday: true, name: "Herbstferien"}
	d := &fakeDeliverer{}
	r := NewRunner(&fakeFetcher{day: untis.Day{Lessons: []model.Lesson{dbk()}, Holidays: untisHolidays}}, h, d,
		Options{Labels: timetable.LabelsFor(timetable.English)})

	rep, err := r.Run(context.Background(), testDay)
	require.NoError(t, err)
	assert.True(t, rep.Holiday)
	assert.Equal(t, "Herbstferien", rep.HolidayName)
	assert.Equal(t, "No school today (Herbstferien)", rep.Body)
	assert.Empty(t, rep.Slots)
	assert.Empty(t, d.sent)
	assert.Equal(t, untisHolidays, h.seen)
}

func TestRunner_Run_DryRun(t *testing.T) {
	d := &fakeDeliverer{}
	r := NewRunner(&fakeFetcher{day: untis.Day{Lessons: []model.Lesson{dbk()}}}, nil, d, Options{DryRun: true})

	rep, err := r.Run(context.Background(), testDay)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Body)
	assert.Empty(t, d.sent)

	rep, err = NewRunner(&fakeFetcher{}, nil, nil, Options{}).Run(context.Background(), testDay)
	require.NoError(t, err)
	assert.NotNil(t, rep, "nil deliverer acts as dry run")
}

func TestRunner_Build_CustomGrid(t *testing.T) {
	grid := timetable.Grid{{Start: 745, Label: "1."}, {Start: 830, Label: "2."}}
	r := NewRunner(&fakeFetcher{day: untis.Day{Lessons: []model.Lesson{dbk()}}}, nil, nil, Options{
		Grid:   grid,
		Labels: timetable.LabelsFor(timetable.English),
	})

	rep, err := r.Build(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "1. | Datenbanken | B121 | Hermes\n\n2. | FREE\n\n", rep.Body)
	assert.Equal(t, "Timetable for **TODAY**", rep.Header)
}
