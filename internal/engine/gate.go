package engine

import (
	"context"
	"log/slog"

	"github.com/knexpress/booking-capture/internal/validate"
)

// ValidationGate submits artifacts to the external validator and interprets
// the outcome for the orchestrator.
//
// Document artifacts are validated individually. Face artifacts are only
// accepted locally here ("captured"); the authoritative liveness and
// face-match check runs once over the whole action sequence via
// CheckSequence.
type ValidationGate struct {
	validator validate.Validator
	logger    *slog.Logger
}

// NewValidationGate creates a gate over the given validator.
func NewValidationGate(v validate.Validator, logger *slog.Logger) *ValidationGate {
	return &ValidationGate{validator: v, logger: logger}
}

// Check validates a single artifact according to its session kind.
func (g *ValidationGate) Check(ctx context.Context, a Artifact) (validate.Outcome, error) {
	if a.Session.Kind == KindFace {
		// Per-action capture is optimistic; judged at sequence end.
		return validate.Accepted(1.0), nil
	}

	outcome, err := g.validator.ValidateDocument(ctx, a.Data, string(a.Session.Side))
	if err != nil {
		g.logger.Warn("document validation failed", "session", a.Session.ID, "error", err)
		return validate.Outcome{}, err
	}
	return outcome, nil
}

// CheckSequence validates a completed liveness sequence in action order.
func (g *ValidationGate) CheckSequence(ctx context.Context, artifacts []Artifact) (validate.Outcome, error) {
	images := make([][]byte, len(artifacts))
	actions := make([]string, len(artifacts))
	for i, a := range artifacts {
		images[i] = a.Data
		actions[i] = string(a.Session.Action)
	}

	outcome, err := g.validator.ValidateSequence(ctx, images, actions)
	if err != nil {
		g.logger.Warn("sequence validation failed", "error", err)
		return validate.Outcome{}, err
	}
	return outcome, nil
}
