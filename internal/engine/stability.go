package engine

import (
	"math"
	"time"

	"github.com/knexpress/booking-capture/internal/detector"
)

// StabilityTracker decides when a stream of detections has been good enough
// for long enough to trust. A detection that moves more than the pixel
// tolerance from the reference, fails the action predicate, or goes absent
// resets progress to zero.
//
// The tracker is owned exclusively by the sampling loop and is not safe for
// concurrent use.
type StabilityTracker struct {
	kind      Kind
	tolerance float64
	required  time.Duration

	ref    detector.Result
	hasRef bool
	since  time.Time

	now func() time.Time
}

// NewStabilityTracker creates a tracker requiring detections to stay within
// tolerance pixels of each other for the required duration.
func NewStabilityTracker(kind Kind, tolerance float64, required time.Duration) *StabilityTracker {
	return &StabilityTracker{
		kind:      kind,
		tolerance: tolerance,
		required:  required,
		now:       time.Now,
	}
}

// Observe feeds the next detection and reports whether the target has been
// stable for the required duration.
func (t *StabilityTracker) Observe(r detector.Result) bool {
	if !r.Present {
		t.Reset()
		return false
	}
	if t.kind == KindFace && !r.ValidForAction {
		t.Reset()
		return false
	}

	if !t.hasRef || t.movement(t.ref, r) > t.tolerance {
		t.ref = r
		t.hasRef = true
		t.since = t.now()
		return false
	}

	return t.now().Sub(t.since) >= t.required
}

// Progress returns the fraction of the required duration covered so far,
// clamped to [0, 1]. UI feedback only; correctness rides on Observe.
func (t *StabilityTracker) Progress() float64 {
	if !t.hasRef || t.required <= 0 {
		return 0
	}
	p := float64(t.now().Sub(t.since)) / float64(t.required)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Reset clears the reference detection and progress.
func (t *StabilityTracker) Reset() {
	t.ref = detector.Result{}
	t.hasRef = false
	t.since = time.Time{}
}

// movement returns the displacement between two detections: the largest
// corner shift for documents, the bounding-box center shift for faces.
func (t *StabilityTracker) movement(prev, cur detector.Result) float64 {
	if t.kind == KindDocument {
		return detector.MaxCornerDistance(prev.Quad, cur.Quad)
	}
	return pointDistance(prev.Box.Center(), cur.Box.Center())
}

func pointDistance(a, b detector.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
