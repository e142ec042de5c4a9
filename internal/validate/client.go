package validate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig holds the configuration for the OCR backend client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    "http://localhost:5000",
		Timeout:    30 * time.Second,
		RetryCount: 2,
	}
}

// Client validates artifacts against the remote OCR backend. Document
// images are sent for text extraction and the extracted fields are scored
// locally with the ID rules; liveness sequences are judged entirely by the
// backend.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
	now        func() time.Time
}

// NewClient creates a Client for the given backend.
func NewClient(config ClientConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		now:        time.Now,
	}
}

type ocrRequest struct {
	Image string `json:"image"`
	Side  string `json:"side"`
}

type ocrResponse struct {
	Success    bool    `json:"success"`
	Data       Fields  `json:"data"`
	RawText    string  `json:"rawText"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

type sequenceRequest struct {
	Frames  []string `json:"frames"`
	Actions []string `json:"actions"`
}

type sequenceResponse struct {
	Success    bool    `json:"success"`
	IsLive     bool    `json:"isLive"`
	FaceMatch  bool    `json:"faceMatch"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Error      string  `json:"error"`
}

// ValidateDocument sends the image for OCR extraction and applies the ID
// rules to whatever the backend read off the card.
func (c *Client) ValidateDocument(ctx context.Context, image []byte, side string) (Outcome, error) {
	req := ocrRequest{
		Image: base64.StdEncoding.EncodeToString(image),
		Side:  side,
	}

	var resp ocrResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/api/ocr/process", req, &resp); err != nil {
		return Outcome{}, err
	}
	if !resp.Success {
		if resp.Error != "" {
			return Rejected(resp.Error), nil
		}
		return Rejected("text extraction failed"), nil
	}

	return Evaluate(resp.Data, side, c.now()).Outcome(), nil
}

// ValidateSequence submits the ordered face artifacts for the combined
// liveness and face-match check.
func (c *Client) ValidateSequence(ctx context.Context, images [][]byte, actions []string) (Outcome, error) {
	req := sequenceRequest{
		Frames:  make([]string, len(images)),
		Actions: actions,
	}
	for i, img := range images {
		req.Frames[i] = base64.StdEncoding.EncodeToString(img)
	}

	var resp sequenceResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/api/liveness/validate", req, &resp); err != nil {
		return Outcome{}, err
	}
	if !resp.Success {
		if resp.Error != "" {
			return Rejected(resp.Error), nil
		}
		return Rejected("liveness validation failed"), nil
	}
	if !resp.IsLive || !resp.FaceMatch {
		reason := resp.Reason
		if reason == "" {
			reason = "liveness or face match check failed"
		}
		return Rejected(reason), nil
	}

	return Accepted(resp.Confidence), nil
}

// Healthy reports whether the backend answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// doRequestWithRetry executes the request, retrying server errors with
// exponential backoff. Client errors (4xx) are not retried.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body, result any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		var status int
		status, lastErr = c.doRequest(ctx, method, path, body, result)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if status >= 400 && status < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("validator returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
