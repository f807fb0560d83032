package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "untisbot/internal/log"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler runs a Job on a cron schedule in a fixed timezone. Runs never
// overlap: a trigger that fires while the previous run is busy is skipped.
type Scheduler struct {
	cron   *cron.Cron
	entry  cron.EntryID
	loc    *time.Location
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (standard 5-field cron or a descriptor such as "@every 1h")
// and binds job to it. The schedule does not start until Start.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, loc: loc, ctx: ctx, cancel: cancel}

	id, err := c.AddFunc(spec, func() { job(s.ctx) })
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	appLog.Info("scheduler started", "next", s.Next().Format(time.RFC3339))
}

// Next is the first activation after now.
func (s *Scheduler) Next() time.Time {
	e := s.cron.Entry(s.entry)
	if e.Schedule == nil {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(s.loc))
}

// Stop cancels the context handed to a running job and waits for it to
// return, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		appLog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging into the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
