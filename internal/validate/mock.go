package validate

import (
	"context"
	"sync"
)

// Mock is a test validator with scripted outcomes. Outcomes are consumed in
// order; when the script runs out the last outcome repeats.
type Mock struct {
	mu        sync.Mutex
	doc       []Outcome
	seq       []Outcome
	docIndex  int
	seqIndex  int
	err       error
	DocCalls  int
	SeqCalls  int
	LastSide  string
	LastCount int
}

// NewMock creates a Mock that accepts everything until scripted otherwise.
func NewMock() *Mock {
	return &Mock{}
}

// ScriptDocument sets the outcomes returned by successive ValidateDocument calls.
func (m *Mock) ScriptDocument(outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = outcomes
	m.docIndex = 0
}

// ScriptSequence sets the outcomes returned by successive ValidateSequence calls.
func (m *Mock) ScriptSequence(outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = outcomes
	m.seqIndex = 0
}

// SetError makes every call return err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) ValidateDocument(ctx context.Context, image []byte, side string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DocCalls++
	m.LastSide = side
	if m.err != nil {
		return Outcome{}, m.err
	}
	if len(m.doc) == 0 {
		return Accepted(1.0), nil
	}
	out := m.doc[m.docIndex]
	if m.docIndex < len(m.doc)-1 {
		m.docIndex++
	}
	return out, nil
}

func (m *Mock) ValidateSequence(ctx context.Context, images [][]byte, actions []string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeqCalls++
	m.LastCount = len(images)
	if m.err != nil {
		return Outcome{}, m.err
	}
	if len(m.seq) == 0 {
		return Accepted(1.0), nil
	}
	out := m.seq[m.seqIndex]
	if m.seqIndex < len(m.seq)-1 {
		m.seqIndex++
	}
	return out, nil
}

// Stub is the accept-all validator used when no backend is configured.
// Development only; it performs no checks at all.
type Stub struct{}

// NewStub creates a Stub validator.
func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) ValidateDocument(ctx context.Context, image []byte, side string) (Outcome, error) {
	return Accepted(1.0), nil
}

func (s *Stub) ValidateSequence(ctx context.Context, images [][]byte, actions []string) (Outcome, error) {
	return Accepted(1.0), nil
}
