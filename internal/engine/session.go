// Package engine implements the guided capture core: the sampling loop,
// stability tracking, single-flight capture, and per-artifact validation.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/knexpress/booking-capture/internal/detector"
)

// Kind identifies what a capture session is aimed at.
type Kind string

// Session kinds.
const (
	KindDocument Kind = "document"
	KindFace     Kind = "face"
)

// Side identifies a document side.
type Side string

// Document sides.
const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Session identifies one capture target: a document side or a liveness
// action. It is passed by value end-to-end; the generation counter tags
// async work so stale completions can be discarded.
type Session struct {
	ID         string
	Kind       Kind
	Side       Side            // document sessions only
	Action     detector.Action // face sessions only
	Generation uint64
}

// NewDocumentSession creates a session for capturing one document side.
func NewDocumentSession(side Side) Session {
	return Session{
		ID:         uuid.NewString(),
		Kind:       KindDocument,
		Side:       side,
		Generation: 1,
	}
}

// NewFaceSession creates a session for capturing one liveness action.
func NewFaceSession(action detector.Action) Session {
	return Session{
		ID:         uuid.NewString(),
		Kind:       KindFace,
		Action:     action,
		Generation: 1,
	}
}

// Label returns the side or action this session captures, for logs and
// persistence.
func (s Session) Label() string {
	if s.Kind == KindDocument {
		return string(s.Side)
	}
	return string(s.Action)
}

// Artifact is a rectified capture output. Immutable once created.
type Artifact struct {
	Session    Session
	Data       []byte
	Confidence float64
	CapturedAt time.Time
}
