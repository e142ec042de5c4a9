package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/validate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestValidationGate_DocumentDelegates(t *testing.T) {
	mock := validate.NewMock()
	mock.ScriptDocument(validate.Rejected("id number not found"))
	gate := NewValidationGate(mock, discardLogger())

	artifact := Artifact{
		Session: NewDocumentSession(SideFront),
		Data:    []byte("jpeg"),
	}

	outcome, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if outcome.Accepted {
		t.Error("expected the scripted rejection to pass through")
	}
	if outcome.Reason != "id number not found" {
		t.Errorf("reason = %q, want %q", outcome.Reason, "id number not found")
	}
	if mock.DocCalls != 1 {
		t.Errorf("DocCalls = %d, want 1", mock.DocCalls)
	}
	if mock.LastSide != "front" {
		t.Errorf("LastSide = %q, want %q", mock.LastSide, "front")
	}
}

func TestValidationGate_FaceAcceptedLocally(t *testing.T) {
	mock := validate.NewMock()
	mock.ScriptSequence(validate.Rejected("should not be consulted"))
	gate := NewValidationGate(mock, discardLogger())

	artifact := Artifact{
		Session: NewFaceSession(detector.ActionBlink),
		Data:    []byte("jpeg"),
	}

	outcome, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !outcome.Accepted {
		t.Error("face artifacts must be accepted at capture time")
	}
	if mock.DocCalls != 0 || mock.SeqCalls != 0 {
		t.Error("face capture must not hit the validator")
	}
}

func TestValidationGate_CheckSequenceOrder(t *testing.T) {
	recorder := &sequenceRecorder{}
	gate := NewValidationGate(recorder, discardLogger())

	actions := []detector.Action{detector.ActionBlink, detector.ActionSmile, detector.ActionTurnLeft}
	artifacts := make([]Artifact, len(actions))
	for i, a := range actions {
		artifacts[i] = Artifact{
			Session: NewFaceSession(a),
			Data:    []byte(a),
		}
	}

	if _, err := gate.CheckSequence(context.Background(), artifacts); err != nil {
		t.Fatalf("CheckSequence returned error: %v", err)
	}

	want := []string{"blink", "smile", "turn-left"}
	if len(recorder.actions) != len(want) {
		t.Fatalf("validator saw %d actions, want %d", len(recorder.actions), len(want))
	}
	for i, a := range want {
		if recorder.actions[i] != a {
			t.Errorf("action[%d] = %q, want %q", i, recorder.actions[i], a)
		}
		if string(recorder.images[i]) != a {
			t.Errorf("image[%d] does not belong to action %q", i, a)
		}
	}
}

// sequenceRecorder captures the exact payload CheckSequence sends.
type sequenceRecorder struct {
	images  [][]byte
	actions []string
}

func (r *sequenceRecorder) ValidateDocument(ctx context.Context, image []byte, side string) (validate.Outcome, error) {
	return validate.Accepted(1.0), nil
}

func (r *sequenceRecorder) ValidateSequence(ctx context.Context, images [][]byte, actions []string) (validate.Outcome, error) {
	r.images = images
	r.actions = actions
	return validate.Accepted(1.0), nil
}
