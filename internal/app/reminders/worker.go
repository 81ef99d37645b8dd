// Package reminders delivers the deferred 24-hour departure reminders.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	clockport "github.com/rice-apps/carpool-backend/internal/ports/out/clock"
	"github.com/rice-apps/carpool-backend/internal/ports/out/mailer"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
	"github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
)

// Worker polls the job store for due reminder jobs, sends each one's
// reminder email, and removes the fired job.
type Worker struct {
	jobs   reminderjob.Store
	rides  riderepo.Repository
	mail   mailer.Gateway
	clk    clockport.Clock
	logger *slog.Logger

	interval time.Duration
}

func NewWorker(jobs reminderjob.Store, rides riderepo.Repository, mail mailer.Gateway, clk clockport.Clock, logger *slog.Logger, interval time.Duration) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		jobs:     jobs,
		rides:    rides,
		mail:     mail,
		clk:      clk,
		logger:   logger,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.CheckDue(ctx); err != nil {
				w.logger.Warn("reminder check failed", "error", err)
			}
		}
	}
}

// CheckDue fires every job whose time has come. A send failure leaves the
// job in place for the next tick; a fired job is cancelled so it never
// delivers twice.
func (w *Worker) CheckDue(ctx context.Context) error {
	now := w.clk.Now()
	due, err := w.jobs.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	w.logger.Info("firing due reminders", "count", len(due))

	for _, j := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.fire(ctx, j); err != nil {
			w.logger.Warn("reminder delivery failed", "ride_id", j.RideID, "error", err)
			continue
		}
		if _, err := w.jobs.CancelByRideID(ctx, j.RideID); err != nil {
			w.logger.Error("fired job cleanup failed", "ride_id", j.RideID, "error", err)
		}
	}
	return nil
}

func (w *Worker) fire(ctx context.Context, j reminderjob.Job) error {
	r, err := w.rides.GetByID(ctx, j.RideID)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			// The ride disappeared without its job being cancelled; drop
			// the orphan instead of mailing about a ride that is gone.
			w.logger.Warn("dropping reminder for missing ride", "ride_id", j.RideID)
			return nil
		}
		return err
	}
	if len(j.Recipients) == 0 {
		w.logger.Info("reminder has no recipients; skipping send", "ride_id", j.RideID)
		return nil
	}

	subject := "Reminder: your ride to " + r.ArrivingAt + " departs in 24 hours"
	body := "<p>Your ride departs in 24 hours.</p>" +
		"<p><b>Departing from</b>: " + r.DepartingFrom + "</p>" +
		"<p><b>Arriving at</b>: " + r.ArrivingAt + "</p>"
	return w.mail.Send(ctx, j.Recipients, subject, body)
}
