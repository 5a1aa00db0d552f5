package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reminder logs entries shortly before they are due. Each entry is reported
// once per process.
type Reminder struct {
	app      *App
	ahead    time.Duration
	log      zerolog.Logger
	cron     *cron.Cron
	mu       sync.Mutex
	notified map[Entry]bool
}

func StartReminder(app *App, spec string, ahead time.Duration, logger zerolog.Logger) (*Reminder, error) {
	rem := &Reminder{
		app:      app,
		ahead:    ahead,
		log:      logger.With().Str("component", "remind").Logger(),
		cron:     cron.New(),
		notified: make(map[Entry]bool),
	}

	if _, err := rem.cron.AddFunc(spec, func() { rem.Check(app.now()) }); err != nil {
		return nil, fmt.Errorf("invalid remind schedule %q: %w", spec, err)
	}
	rem.cron.Start()

	rem.log.Info().Str("schedule", spec).Dur("ahead", ahead).Msg("reminders scheduled")
	return rem, nil
}

func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
}

// Check returns the entries starting within the reminder window after now
// that were not reported before, and logs each of them.
func (r *Reminder) Check(now time.Time) []Entry {
	_, entries, err := r.app.DayEntries(FormatDate(now))
	if err != nil {
		r.log.Error().Err(err).Msg("loading today's entries failed")
		return nil
	}
	// the window may reach past midnight
	if end := now.Add(r.ahead); FormatDate(end) != FormatDate(now) {
		_, tomorrow, err := r.app.DayEntries(FormatDate(end))
		if err != nil {
			r.log.Error().Err(err).Msg("loading tomorrow's entries failed")
		}
		entries = append(entries, tomorrow...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var due []Entry
	for _, e := range entries {
		at, err := EntryTime(e)
		if err != nil || at.Before(now) || at.After(now.Add(r.ahead)) {
			continue
		}

		key := Entry{Date: e.Date, Time: e.Time, AdditionalInfo: e.AdditionalInfo}
		if r.notified[key] {
			continue
		}
		r.notified[key] = true
		due = append(due, e)

		r.log.Info().
			Str("date", e.Date).
			Str("time", e.Time).
			Dur("in", at.Sub(now).Round(time.Minute)).
			Str("info", Summary(e.AdditionalInfo, 60)).
			Msg("upcoming entry")
	}
	return due
}
