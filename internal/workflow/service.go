// Package workflow records doses through the safety check and override
// path, and owns the other mutations of a substance.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noahxzhu/medtracker/internal/history"
	"github.com/noahxzhu/medtracker/internal/metrics"
	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/records"
	"github.com/noahxzhu/medtracker/internal/safety"
	"github.com/noahxzhu/medtracker/internal/storage"
	"github.com/noahxzhu/medtracker/internal/supply"
	"github.com/noahxzhu/medtracker/internal/timing"
)

type Service struct {
	repo     *records.Repository
	resolver *timing.Resolver
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() model.ID
	onCommit func()
}

// NewService wires the workflow. m may be nil.
func NewService(repo *records.Repository, resolver *timing.Resolver, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		metrics:  m,
		now:      time.Now,
		newID:    newDoseID,
	}
}

// SetOnCommit sets a callback run after every successful write.
func (s *Service) SetOnCommit(fn func()) {
	s.onCommit = fn
}

func (s *Service) committed() {
	if s.onCommit != nil {
		s.onCommit()
	}
}

// Profile resolves the timing profile of a substance.
func (s *Service) Profile(sub model.Substance) timing.Profile {
	return s.resolver.Resolve(sub.Name, sub.Category)
}

// Begin starts a dose request. It is refused with ErrSupplyExhausted when
// supply is tracked and empty.
func (s *Service) Begin(ctx context.Context, id model.ID) (*Session, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if supply.Exhausted(sub.Settings) {
		s.metrics.Refused("supply_exhausted")
		return nil, fmt.Errorf("%w for %s", ErrSupplyExhausted, sub.Name)
	}

	return &Session{
		svc:         s,
		substanceID: sub.ID,
		state:       StatePendingInput,
		draft:       Draft{Amount: sub.StandardDose(), Unit: sub.Unit(), At: s.now()},
	}, nil
}

// QuickLog records a dose without the override gate. Its status is tagged
// by safety.Classify against the previous dose and the configured interval.
func (s *Service) QuickLog(ctx context.Context, id model.ID, amountText string, at time.Time) (model.Dose, error) {
	amount, err := parseAmount(amountText)
	if err != nil {
		return model.Dose{}, err
	}
	if at.IsZero() {
		at = s.now()
	}

	var dose model.Dose
	_, err = s.repo.Update(ctx, id, func(sub *model.Substance, _ *records.Change) error {
		if supply.Exhausted(sub.Settings) {
			return fmt.Errorf("%w for %s", ErrSupplyExhausted, sub.Name)
		}

		var previous *time.Time
		if last, ok := sub.LastDose(); ok {
			previous = &last.Timestamp
		}
		dose = model.Dose{
			ID:        s.newID(),
			Timestamp: at.UTC(),
			Amount:    model.Amount(amount),
			Status:    safety.Classify(at, previous, sub.Settings.MinTimeBetweenDoses),
		}

		sub.Doses = append([]model.Dose{dose}, sub.Doses...)
		slices.SortStableFunc(sub.Doses, func(a, b model.Dose) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
		sub.Settings = supply.Apply(sub.Settings, amount)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSupplyExhausted) {
			s.metrics.Refused("supply_exhausted")
		}
		return model.Dose{}, s.commitError(err)
	}

	s.metrics.DoseCommitted(string(dose.Status))
	s.committed()
	slog.Info("Dose logged", "substance", id, "status", dose.Status, "amount", amount)
	return dose, nil
}

// ResetTimer removes the most recently added dose. Supply and the override
// log are left as they are.
func (s *Service) ResetTimer(ctx context.Context, id model.ID) (model.Dose, error) {
	var removed model.Dose
	_, err := s.repo.Update(ctx, id, func(sub *model.Substance, _ *records.Change) error {
		if len(sub.Doses) == 0 {
			return ErrNoDoses
		}
		removed = sub.Doses[0]
		sub.Doses = sub.Doses[1:]
		return nil
	})
	if err != nil {
		return model.Dose{}, s.commitError(err)
	}

	s.committed()
	slog.Info("Timer reset", "substance", id, "removed_dose", removed.ID)
	return removed, nil
}

// Delete removes a substance. Its override log stays in the store.
func (s *Service) Delete(ctx context.Context, id model.ID) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.commitError(err)
	}

	s.committed()
	slog.Info("Substance deleted", "substance", id, "name", removed.Name, "doses", len(removed.Doses))
	return nil
}

// Find returns the substances whose name contains query, ignoring case.
func (s *Service) Find(ctx context.Context, query string) ([]model.Substance, error) {
	return s.repo.Search(ctx, query)
}

// SinceLastDose returns the hours since the most recent dose, for live
// displays that poll it.
func (s *Service) SinceLastDose(ctx context.Context, id model.ID) (float64, bool, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	last, ok := safety.MostRecent(sub.Doses)
	if !ok {
		return 0, false, nil
	}
	return safety.Elapsed(s.now(), last), true, nil
}

// History returns the day-grouped dose log of a substance.
func (s *Service) History(ctx context.Context, id model.ID) (iter.Seq[history.DayGroup], error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return history.Aggregate(sub.Doses, sub.Unit(), s.now()), nil
}

// commit writes a dose, its supply decrement and, for overrides, the audit
// entry as one store commit.
func (s *Service) commit(ctx context.Context, id model.ID, amount float64, at time.Time, status model.DoseStatus, reason string, verdict safety.Verdict) (model.Dose, error) {
	dose := model.Dose{
		ID:        s.newID(),
		Timestamp: at.UTC(),
		Amount:    model.Amount(amount),
		Status:    status,
	}
	if status == model.StatusOverride {
		dose.OverrideReason = reason
	}

	_, err := s.repo.Update(ctx, id, func(sub *model.Substance, c *records.Change) error {
		sub.Doses = append([]model.Dose{dose}, sub.Doses...)
		sub.Settings = supply.Apply(sub.Settings, amount)

		if status == model.StatusOverride {
			entry := model.OverrideLog{
				Timestamp:  dose.Timestamp,
				DrugID:     sub.ID,
				DrugName:   sub.Name,
				Reason:     reason,
				DosesToday: verdict.DosesToday,
			}
			if verdict.HasPriorDose() {
				hours := verdict.TimeSinceLastDose
				entry.TimeSinceLastDose = &hours
			}
			c.AppendOverride(entry)
		}
		return nil
	})
	if err != nil {
		return model.Dose{}, s.commitError(err)
	}

	s.metrics.DoseCommitted(string(status))
	s.committed()
	if status == model.StatusOverride {
		slog.Warn("Dose recorded with safety override", "substance", id, "amount", amount, "reason", reason,
			"doses_today", verdict.DosesToday, "hours_since_last", verdict.TimeSinceLastDose)
	} else {
		slog.Info("Dose recorded", "substance", id, "amount", amount)
	}
	return dose, nil
}

func (s *Service) commitError(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		s.metrics.Conflict()
		slog.Error("Store changed during commit", "error", err)
	}
	return err
}

func parseAmount(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, invalid("amount", "please enter a valid dosage")
	}
	amount, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, invalid("amount", "please enter a valid dosage")
	}
	return amount, nil
}

func newDoseID() model.ID {
	id, err := uuid.NewV7()
	if err != nil {
		return model.ID(uuid.NewString())
	}
	return model.ID(id.String())
}
