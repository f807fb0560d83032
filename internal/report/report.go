package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "untisbot/internal/log"
	"untisbot/internal/model"
	"untisbot/internal/timetable"
	"untisbot/internal/untis"
	"untisbot/internal/webhook"
)

var (
	// ErrFetch marks a run that failed before a report could be built.
	ErrFetch = errors.New("report: fetch failed")
	// ErrDeliver marks a run whose report was built but not delivered.
	ErrDeliver = errors.New("report: delivery failed")
)

// DayFetcher returns the raw data for one school day.
type DayFetcher interface {
	FetchDay(ctx context.Context, day time.Time) (untis.Day, error)
}

// HolidayChecker decides whether a day is a holiday.
type HolidayChecker interface {
	Check(ctx context.Context, day time.Time, untisHolidays []model.Holiday) (bool, string)
}

// Report is the outcome of building one day.
type Report struct {
	Date        time.Time        `json:"date"`
	Holiday     bool             `json:"holiday"`
	HolidayName string           `json:"holiday_name,omitempty"`
	Slots       []timetable.Slot `json:"slots"`
	Header      string           `json:"-"`
	Body        string           `json:"-"`
}

// Text is the report as posted to the chat.
func (r *Report) Text() string {
	return webhook.Message{Header: r.Header, Body: r.Body}.Text()
}

// Options configures a Runner.
type Options struct {
	Grid      timetable.Grid
	Labels    timetable.Labels
	Username  string
	AvatarURL string
	// DryRun builds reports without delivering them.
	DryRun bool
}

// Runner executes the fetch, holiday check, normalize, render and deliver
// pipeline. It keeps no state between runs.
type Runner struct {
	fetcher   DayFetcher
	holidays  HolidayChecker
	deliverer webhook.Deliverer
	opts      Options
}

// NewRunner creates a Runner. holidays and deliverer may be nil; a nil
// deliverer behaves like DryRun.
func NewRunner(fetcher DayFetcher, holidays HolidayChecker, deliverer webhook.Deliverer, opts Options) *Runner {
	if len(opts.Grid) == 0 {
		opts.Grid = timetable.DefaultGrid()
	}
	if opts.Labels == (timetable.Labels{}) {
		opts.Labels = timetable.LabelsFor(timetable.German)
	}
	return &Runner{fetcher: fetcher, holidays: holidays, deliverer: deliverer, opts: opts}
}

// Build fetches and renders the report for day without delivering it.
func (r *Runner) Build(ctx context.Context, day time.Time) (*Report, error) {
	data, err := r.fetcher.FetchDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	rep := &Report{Date: day, Header: r.opts.Labels.Header}

	if r.holidays != nil {
		if ok, name := r.holidays.Check(ctx, day, data.Holidays); ok {
			rep.Holiday = true
			rep.HolidayName = name
			rep.Body = r.opts.Labels.Holiday
			if name != "" {
				rep.Body += " (" + name + ")"
			}
			return rep, nil
		}
	}

	rep.Slots = timetable.Normalize(data.Lessons, r.opts.Grid)
	rep.Body = timetable.Render(rep.Slots, r.opts.Grid, r.opts.Labels)
	return rep, nil
}

// Run builds the report for day and posts it. Holidays are never posted.
// On a delivery failure the built report is returned with an ErrDeliver error.
func (r *Runner) Run(ctx context.Context, day time.Time) (*Report, error) {
	rep, err := r.Build(ctx, day)
	if err != nil {
		return nil, err
	}

	date := day.Format("2006-01-02")
	if rep.Holiday {
		appLog.Info("holiday, skipping report", "date", date, "name", rep.HolidayName)
		return rep, nil
	}
	if r.opts.DryRun || r.deliverer == nil {
		appLog.Debug("dry run, not delivering", "date", date)
		return rep, nil
	}

	err = r.deliverer.Deliver(ctx, webhook.Message{
		Header:    rep.Header,
		Body:      rep.Body,
		Username:  r.opts.Username,
		AvatarURL: r.opts.AvatarURL,
	})
	if err != nil {
		return rep, fmt.Errorf("%w: %w", ErrDeliver, err)
	}

	appLog.Info("report delivered", "date", date, "slots", len(rep.Slots))
	return rep, nil
}
