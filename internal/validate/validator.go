// Package validate submits captured artifacts to an identity validator and
// interprets accept/reject outcomes.
package validate

import (
	"context"
	"errors"
)

// Document sides.
const (
	SideFront = "front"
	SideBack  = "back"
)

// ErrUnavailable is returned when the validator backend cannot be reached.
var ErrUnavailable = errors.New("validator unavailable")

// Outcome is the result of validating an artifact: accepted with a
// confidence score, or rejected with a human-readable reason.
type Outcome struct {
	Accepted   bool
	Confidence float64
	Reason     string
}

// Accepted builds an accepting outcome.
func Accepted(confidence float64) Outcome {
	return Outcome{Accepted: true, Confidence: confidence}
}

// Rejected builds a rejecting outcome.
func Rejected(reason string) Outcome {
	return Outcome{Accepted: false, Reason: reason}
}

// Validator checks captured artifacts against an identity backend.
// Implementations treat the images as opaque JPEG bytes.
type Validator interface {
	// ValidateDocument checks a rectified document image for the given side.
	ValidateDocument(ctx context.Context, image []byte, side string) (Outcome, error)

	// ValidateSequence checks a completed liveness sequence: the face
	// artifacts in action order together with the actions they answer.
	ValidateSequence(ctx context.Context, images [][]byte, actions []string) (Outcome, error)
}
