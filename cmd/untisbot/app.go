package main

import (
	"errors"

	"untisbot/internal/config"
	"untisbot/internal/holiday"
	"untisbot/internal/ics"
	"untisbot/internal/report"
	"untisbot/internal/timetable"
	"untisbot/internal/untis"
	"untisbot/internal/webhook"
)

// newRunner wires the WebUntis source, holiday checker and webhook into a
// report.Runner. In dry-run mode no webhook is required.
func newRunner(cfg *config.Config, dryRun bool) (*report.Runner, error) {
	if cfg.Untis.Server == "" || cfg.Untis.School == "" {
		return nil, errors.New("untis server and school must be configured")
	}

	client := untis.New(untis.Config{
		Server:   cfg.Untis.Server,
		School:   cfg.Untis.School,
		Username: cfg.Untis.Username,
		Password: cfg.Untis.Password,
		Identity: cfg.Untis.Identity,
	})
	source := untis.NewSource(client, cfg.Holidays.Untis)

	var fetcher *ics.Fetcher
	sources := make([]ics.Source, 0, len(cfg.Holidays.ICS))
	for _, c := range cfg.Holidays.ICS {
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
	}
	if len(sources) > 0 {
		fetcher = ics.NewFetcher(cfg.Holidays.CacheDir)
	}
	checker := holiday.NewChecker(fetcher, sources, cfg.Location())

	var deliverer webhook.Deliverer
	if !dryRun {
		d, err := webhook.New(webhook.Config{Kind: cfg.Webhook.Kind, URL: cfg.Webhook.URL})
		if err != nil {
			return nil, err
		}
		deliverer = d
	}

	return report.NewRunner(source, checker, deliverer, report.Options{
		Grid:      cfg.Grid,
		Labels:    timetable.LabelsFor(timetable.Language(cfg.Language)),
		Username:  cfg.Webhook.Username,
		AvatarURL: cfg.Webhook.AvatarURL,
		DryRun:    dryRun,
	}), nil
}
