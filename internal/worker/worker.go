package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/noahxzhu/medtracker/internal/metrics"
	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/safety"
	"github.com/noahxzhu/medtracker/internal/supply"
	"github.com/noahxzhu/medtracker/internal/timing"
)

// Source lists the substances to watch. *records.Repository satisfies it.
type Source interface {
	List(ctx context.Context) ([]model.Substance, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, title, message string) error
}

// Worker sends one "next dose available" reminder per last dose once the
// required interval since that dose has passed.
type Worker struct {
	source     Source
	resolver   *timing.Resolver
	notifier   Notifier
	metrics    *metrics.Metrics
	updateChan chan struct{}
	now        func() time.Time

	// Poll bounds the sleep between checks so doses written by other
	// processes are picked up. Zero sleeps until the next known reminder.
	Poll time.Duration

	mu       sync.Mutex
	started  time.Time
	notified map[model.ID]model.ID // substance -> last dose reminded about
}

func NewWorker(source Source, resolver *timing.Resolver, notifier Notifier) *Worker {
	return &Worker{
		source:     source,
		resolver:   resolver,
		notifier:   notifier,
		updateChan: make(chan struct{}, 1),
		now:        time.Now,
		notified:   make(map[model.ID]model.ID),
	}
}

// SetMetrics sets the collectors reminder attempts are counted in.
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Refresh signals the worker to re-evaluate the schedule immediately
func (w *Worker) Refresh() {
	select {
	case w.updateChan <- struct{}{}:
	default:
	}
}

func (w *Worker) Start(ctx context.Context) {
	slog.Info("Reminder worker started")
	w.mu.Lock()
	w.started = w.now()
	w.mu.Unlock()

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		nextRun := w.checkAndProcess(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		wait := w.Poll
		if !nextRun.IsZero() {
			until := nextRun.Sub(w.now())
			if until < 0 {
				until = 0
			}
			if wait <= 0 || until < wait {
				wait = until
			}
			slog.Info("Next reminder scheduled", "in", until, "at", nextRun.Format("15:04:05"))
		}
		if wait > 0 || !nextRun.IsZero() {
			timer.Reset(wait)
		} else {
			slog.Info("No upcoming doses. Worker idle.")
		}

		select {
		case <-ctx.Done():
			slog.Info("Reminder worker stopped")
			return
		case <-w.updateChan:
			slog.Debug("Reminder worker refreshing")
		case <-timer.C:
		}
	}
}

// checkAndProcess sends due reminders and returns the time of the next one.
func (w *Worker) checkAndProcess(ctx context.Context) time.Time {
	subs, err := w.source.List(ctx)
	if err != nil {
		slog.Error("Failed to list substances", "error", err)
		return time.Time{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var earliestNext time.Time

	for _, sub := range subs {
		last, ok := latestDose(sub.Doses)
		if !ok || supply.Exhausted(sub.Settings) || w.notified[sub.ID] == last.ID {
			continue
		}
		interval := w.interval(sub)
		if interval <= 0 {
			continue
		}
		due := last.Timestamp.Add(time.Duration(interval * float64(time.Hour)))

		if now.Before(due) {
			if earliestNext.IsZero() || due.Before(earliestNext) {
				earliestNext = due
			}
			continue
		}

		w.notified[sub.ID] = last.ID
		if !w.started.IsZero() && due.Before(w.started) {
			// Became due while the worker was not running.
			continue
		}

		slog.Info("Sending next-dose reminder", "substance", sub.ID, "last_dose", last.ID, "due", due.Format(time.RFC3339))
		err := w.notifier.SendMessage(ctx, "Next dose available", reminderText(sub, last, now))
		w.metrics.Reminder(err)
		if err != nil {
			slog.Error("Failed to send pushover message", "error", err, "substance", sub.ID)
		}
	}

	return earliestNext
}

func (w *Worker) interval(sub model.Substance) float64 {
	if sub.Settings.UseRecommendedTiming {
		return w.resolver.Resolve(sub.Name, sub.Category).Hours()
	}
	return sub.Settings.MinTimeBetweenDoses
}

func latestDose(doses []model.Dose) (model.Dose, bool) {
	at, ok := safety.MostRecent(doses)
	if !ok {
		return model.Dose{}, false
	}
	for _, d := range doses {
		if d.Timestamp.Equal(at) {
			return d, true
		}
	}
	return model.Dose{}, false
}

func reminderText(sub model.Substance, last model.Dose, now time.Time) string {
	ago := timing.FormatDuration(safety.Elapsed(now, last.Timestamp) * 60)
	return fmt.Sprintf("%s can be taken again. Last dose: %s %s, %s ago.", sub.Name, last.Amount, sub.Unit(), ago)
}
