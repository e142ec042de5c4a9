package validate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, retries int) *Client {
	c := NewClient(ClientConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		RetryCount: retries,
	})
	c.now = func() time.Time { return testNow }
	return c
}

func TestClient_ValidateDocument(t *testing.T) {
	var gotReq ocrRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ocr/process" {
			t.Errorf("path = %q, want /api/ocr/process", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ocrResponse{
			Success: true,
			Data:    completeFront(),
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	outcome, err := c.ValidateDocument(context.Background(), []byte("jpeg"), SideFront)
	if err != nil {
		t.Fatalf("ValidateDocument returned error: %v", err)
	}
	if !outcome.Accepted {
		t.Errorf("outcome = %+v, want accepted", outcome)
	}

	if gotReq.Side != SideFront {
		t.Errorf("request side = %q, want front", gotReq.Side)
	}
	img, err := base64.StdEncoding.DecodeString(gotReq.Image)
	if err != nil || string(img) != "jpeg" {
		t.Error("request image is not the base64-encoded capture")
	}
}

func TestClient_ValidateDocumentExtractionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ocrResponse{Success: false, Error: "no text found"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	outcome, err := c.ValidateDocument(context.Background(), []byte("jpeg"), SideFront)
	if err != nil {
		t.Fatalf("ValidateDocument returned error: %v", err)
	}
	if outcome.Accepted {
		t.Fatal("extraction failure should be a rejection, not an error")
	}
	if outcome.Reason != "no text found" {
		t.Errorf("reason = %q, want the backend error", outcome.Reason)
	}
}

func TestClient_ValidateSequence(t *testing.T) {
	var gotReq sequenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/liveness/validate" {
			t.Errorf("path = %q, want /api/liveness/validate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sequenceResponse{
			Success:    true,
			IsLive:     true,
			FaceMatch:  true,
			Confidence: 0.93,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	images := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	actions := []string{"blink", "smile", "turn-left"}

	outcome, err := c.ValidateSequence(context.Background(), images, actions)
	if err != nil {
		t.Fatalf("ValidateSequence returned error: %v", err)
	}
	if !outcome.Accepted || outcome.Confidence != 0.93 {
		t.Errorf("outcome = %+v, want accepted with confidence 0.93", outcome)
	}

	if len(gotReq.Frames) != 3 {
		t.Fatalf("request carries %d frames, want 3", len(gotReq.Frames))
	}
	for i, want := range actions {
		if gotReq.Actions[i] != want {
			t.Errorf("action[%d] = %q, want %q", i, gotReq.Actions[i], want)
		}
	}
}

func TestClient_ValidateSequenceNotLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sequenceResponse{
			Success:   true,
			IsLive:    false,
			FaceMatch: true,
			Reason:    "presentation attack suspected",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	outcome, err := c.ValidateSequence(context.Background(), [][]byte{[]byte("a")}, []string{"blink"})
	if err != nil {
		t.Fatalf("ValidateSequence returned error: %v", err)
	}
	if outcome.Accepted {
		t.Fatal("sequence failing liveness must be rejected")
	}
	if outcome.Reason != "presentation attack suspected" {
		t.Errorf("reason = %q, want the backend reason", outcome.Reason)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ocrResponse{Success: true, Data: completeFront()})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	outcome, err := c.ValidateDocument(context.Background(), []byte("jpeg"), SideFront)
	if err != nil {
		t.Fatalf("ValidateDocument returned error: %v", err)
	}
	if !outcome.Accepted {
		t.Errorf("outcome = %+v, want accepted after retry", outcome)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("backend saw %d calls, want 2", got)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	if _, err := c.ValidateDocument(context.Background(), []byte("jpeg"), SideFront); err == nil {
		t.Fatal("a 4xx response should surface as an error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("backend saw %d calls, want 1 (no retries on 4xx)", got)
	}
}

func TestClient_ExhaustedRetriesWrapUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	if _, err := c.ValidateDocument(context.Background(), []byte("jpeg"), SideFront); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL, 5)
	if _, err := c.ValidateDocument(ctx, []byte("jpeg"), SideFront); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClient_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	if !c.Healthy(context.Background()) {
		t.Error("Healthy should report true for a 200 health endpoint")
	}

	down := newTestClient("http://127.0.0.1:1", 0)
	if down.Healthy(context.Background()) {
		t.Error("Healthy should report false when the backend is unreachable")
	}
}
