package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/safety"
)

type State string

const (
	StateIdle            State = "idle"
	StatePendingInput    State = "pending_input"
	StateSafetyChecked   State = "safety_checked"
	StateOverridePending State = "override_pending"
	StateReasonEntered   State = "reason_entered"
	StateCommitted       State = "committed"
	StateCancelled       State = "cancelled"
)

// Draft is the pre-filled input of a new dose request.
type Draft struct {
	Amount float64
	Unit   string
	At     time.Time
}

// Input is a submitted dose request. Amount is the text as entered; a zero
// At means now.
type Input struct {
	Amount string
	At     time.Time
}

// Result describes what a Submit or ConfirmOverride did. When
// OverrideRequired is set nothing was written and the session waits for
// ConfirmOverride or Cancel.
type Result struct {
	Verdict          safety.Verdict
	OverrideRequired bool
	Dose             model.Dose
}

// Session is one pass through the dose workflow for a single substance.
// It is not safe for concurrent use.
type Session struct {
	svc         *Service
	substanceID model.ID
	state       State
	outcome     State
	draft       Draft

	amount  float64
	at      time.Time
	verdict safety.Verdict
}

func (s *Session) State() State { return s.state }

// Outcome is StateCommitted or StateCancelled once the session has ended,
// and empty before.
func (s *Session) Outcome() State { return s.outcome }

func (s *Session) Draft() Draft { return s.draft }

// Submit validates the input and runs the safety evaluation against the
// current dose log. An unrestricted dose is committed with status normal.
func (s *Session) Submit(ctx context.Context, in Input) (Result, error) {
	if s.state != StatePendingInput {
		return Result{}, s.transitionError("submit")
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return Result{}, err
	}
	at := in.At
	if at.IsZero() {
		at = s.svc.now()
	}

	sub, err := s.svc.repo.Get(ctx, s.substanceID)
	if err != nil {
		return Result{}, err
	}

	s.state = StateSafetyChecked
	s.amount, s.at = amount, at
	s.verdict = safety.Evaluate(sub.Settings, sub.Doses, at, s.svc.Profile(sub))
	s.svc.metrics.Restriction(s.verdict.HasTimeRestriction, s.verdict.HasQuotaRestriction)

	if s.verdict.Restricted() {
		s.state = StateOverridePending
		return Result{Verdict: s.verdict, OverrideRequired: true}, nil
	}

	dose, err := s.svc.commit(ctx, s.substanceID, amount, at, model.StatusNormal, "", s.verdict)
	if err != nil {
		s.state = StatePendingInput
		return Result{Verdict: s.verdict}, err
	}
	s.finish(StateCommitted)
	return Result{Verdict: s.verdict, Dose: dose}, nil
}

// ConfirmOverride commits the pending dose with status override and records
// the reason in the override log.
func (s *Session) ConfirmOverride(ctx context.Context, reason string) (Result, error) {
	if s.state != StateOverridePending {
		return Result{}, s.transitionError("confirm override")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Result{}, invalid("reason", "please provide a reason for overriding the safety warning")
	}

	s.state = StateReasonEntered
	dose, err := s.svc.commit(ctx, s.substanceID, s.amount, s.at, model.StatusOverride, reason, s.verdict)
	if err != nil {
		s.state = StateOverridePending
		return Result{Verdict: s.verdict, OverrideRequired: true}, err
	}
	s.finish(StateCommitted)
	return Result{Verdict: s.verdict, Dose: dose}, nil
}

// Cancel abandons the request without writing anything.
func (s *Session) Cancel() error {
	if s.outcome == StateCommitted {
		return s.transitionError("cancel")
	}
	s.finish(StateCancelled)
	return nil
}

func (s *Session) finish(outcome State) {
	s.outcome = outcome
	s.state = StateIdle
	s.amount, s.at = 0, time.Time{}
}

func (s *Session) transitionError(op string) error {
	if s.outcome != "" {
		return fmt.Errorf("%w: cannot %s, session already %s", ErrInvalidTransition, op, s.outcome)
	}
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, op, s.state)
}
