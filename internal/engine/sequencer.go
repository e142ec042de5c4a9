package engine

import (
	"context"
	"log/slog"

	"github.com/knexpress/booking-capture/internal/detector"
)

// Runner is the per-session capture loop the sequencer drives. Satisfied by
// *Orchestrator; tests substitute scripted runners.
type Runner interface {
	Run(ctx context.Context) (Artifact, error)
	Close()
}

// RunnerFactory builds the capture loop for one session.
type RunnerFactory func(Session) Runner

// ActionSequencer walks a liveness action sequence in order. Each action is
// captured by its own session; after the last one the whole sequence is
// judged at once by the validation gate. A rejected sequence discards every
// collected artifact and restarts from the first action, so the final
// result is always a single run the validator accepted end to end.
type ActionSequencer struct {
	actions []detector.Action
	newRun  RunnerFactory
	gate    *ValidationGate
	logger  *slog.Logger
	events  chan StateEvent
}

// NewActionSequencer creates a sequencer over the given actions. The events
// channel is shared with the runners the factory builds, so the UI sees one
// interleaved feed for the whole sequence.
func NewActionSequencer(actions []detector.Action, factory RunnerFactory, gate *ValidationGate, logger *slog.Logger, events chan StateEvent) *ActionSequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionSequencer{
		actions: actions,
		newRun:  factory,
		gate:    gate,
		logger:  logger,
		events:  events,
	}
}

// Run captures every action in order and returns the artifacts of the first
// sequence the validator accepts. It only fails on context cancellation, a
// runner error, or a validator transport error; plain rejections restart
// the sequence.
func (s *ActionSequencer) Run(ctx context.Context) ([]Artifact, error) {
	for round := 1; ; round++ {
		artifacts, err := s.captureRound(ctx)
		if err != nil {
			return nil, err
		}

		outcome, err := s.gate.CheckSequence(ctx, artifacts)
		if err != nil {
			return nil, err
		}
		if outcome.Accepted {
			s.logger.Info("liveness sequence accepted",
				"round", round, "confidence", outcome.Confidence)
			return artifacts, nil
		}

		s.logger.Info("liveness sequence rejected, restarting",
			"round", round, "reason", outcome.Reason)
		emit(s.events, StateEvent{
			Label:  "sequence",
			State:  StateSampling.String(),
			Reason: outcome.Reason,
		})
	}
}

// captureRound runs one session per action, in order. Artifacts from an
// aborted round are dropped with the round.
func (s *ActionSequencer) captureRound(ctx context.Context) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(s.actions))
	for _, action := range s.actions {
		session := NewFaceSession(action)
		runner := s.newRun(session)

		artifact, err := runner.Run(ctx)
		runner.Close()
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}
