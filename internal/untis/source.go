package untis

import (
	"context"
	"fmt"
	"time"

	appLog "untisbot/internal/log"
	"untisbot/internal/model"
)

// Day is everything fetched for one report run.
type Day struct {
	Date     time.Time
	Lessons  []model.Lesson
	Holidays []model.Holiday
}

// Source fetches one day per call using a fresh login each time, so no
// session outlives a run.
type Source struct {
	client       *Client
	withHolidays bool
}

// NewSource wraps client. withHolidays also fetches the holiday list.
func NewSource(client *Client, withHolidays bool) *Source {
	return &Source{client: client, withHolidays: withHolidays}
}

// FetchDay logs in, fetches the day's lessons (and holidays) and logs out.
// Logout failures are logged only.
func (s *Source) FetchDay(ctx context.Context, day time.Time) (Day, error) {
	out := Day{Date: day}

	if _, err := s.client.Login(ctx); err != nil {
		return out, err
	}
	defer func() {
		if err := s.client.Logout(ctx); err != nil {
			appLog.Error("untis logout failed", err)
		}
	}()

	if s.withHolidays {
		holidays, err := s.client.Holidays(ctx)
		if err != nil {
			return out, fmt.Errorf("fetch holidays: %w", err)
		}
		out.Holidays = holidays
	}

	lessons, err := s.client.Timetable(ctx, day)
	if err != nil {
		return out, fmt.Errorf("fetch timetable: %w", err)
	}
	out.Lessons = lessons
	return out, nil
}
