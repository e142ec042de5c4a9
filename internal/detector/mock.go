package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface. Tests
// script a sequence of results; once the sequence runs out the last result
// repeats.
type MockDetector struct {
	mu      sync.Mutex
	results []Result
	index   int
	err     error
	calls   int
}

// NewMockDetector creates a MockDetector.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetResult makes every Detect call return r.
func (m *MockDetector) SetResult(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = []Result{r}
	m.index = 0
}

// SetSequence scripts consecutive Detect results. The last entry repeats.
func (m *MockDetector) SetSequence(results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
	m.index = 0
}

// SetError makes Detect return err.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Result{}, m.err
	}
	if len(m.results) == 0 {
		return Result{}, nil
	}
	r := m.results[m.index]
	if m.index < len(m.results)-1 {
		m.index++
	}
	return r, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// MockFaceBackend is a test implementation of FaceBackend returning a preset
// observation.
type MockFaceBackend struct {
	mu  sync.Mutex
	obs FaceObservation
	err error
}

// NewMockFaceBackend creates a MockFaceBackend.
func NewMockFaceBackend() *MockFaceBackend {
	return &MockFaceBackend{}
}

// SetObservation sets the observation returned by Observe.
func (m *MockFaceBackend) SetObservation(obs FaceObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = obs
}

// SetError makes Observe return err.
func (m *MockFaceBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Observe returns the preset observation.
func (m *MockFaceBackend) Observe(frame *gocv.Mat) (FaceObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return FaceObservation{}, m.err
	}
	return m.obs, nil
}

// Close is a no-op for the mock backend.
func (m *MockFaceBackend) Close() error {
	return nil
}

// DocumentQuad returns a preset Result for a steadily held document.
func DocumentQuad() Result {
	return Result{
		Present: true,
		Quad: Quad{
			{X: 120, Y: 90},
			{X: 520, Y: 95},
			{X: 515, Y: 345},
			{X: 125, Y: 340},
		},
	}
}

// FrontalFace returns an observation of a sharp, frontal, open-eyed face.
func FrontalFace() FaceObservation {
	return FaceObservation{
		Present: true,
		Box:     Box{X: 220, Y: 120, Width: 200, Height: 240},
		Landmarks: [NumFaceLandmarks]Point{
			{X: 280, Y: 200}, // left eye
			{X: 360, Y: 200}, // right eye
			{X: 320, Y: 250}, // nose tip
			{X: 290, Y: 300}, // left mouth
			{X: 350, Y: 300}, // right mouth
		},
		Pose:     Pose{Pitch: 2, Yaw: 1, Roll: 0},
		Smile:    0.1,
		EyesOpen: 0.95,
	}
}

// BlinkingFace returns a frontal face with eyes closed.
func BlinkingFace() FaceObservation {
	obs := FrontalFace()
	obs.EyesOpen = 0.1
	return obs
}

// SmilingFace returns a frontal face with a strong smile signal.
func SmilingFace() FaceObservation {
	obs := FrontalFace()
	obs.Smile = 0.85
	return obs
}

// TurnedLeftFace returns a face turned well past the left yaw threshold.
func TurnedLeftFace() FaceObservation {
	obs := FrontalFace()
	obs.Pose.Yaw = -30
	return obs
}

// TurnedRightFace returns a face turned well past the right yaw threshold.
func TurnedRightFace() FaceObservation {
	obs := FrontalFace()
	obs.Pose.Yaw = 30
	return obs
}
