package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDispatcherUnavailable indicates the compute client is not configured.
var ErrDispatcherUnavailable = errors.New("compute dispatcher unavailable")

// Doer executes HTTP requests. Satisfied by *http.Client and by test fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ComputeClient implements Dispatcher against the external inference engine's
// HTTP enqueue endpoint. The engine owns every job transition past pending;
// this client only hands work over.
type ComputeClient struct {
	BaseURL string
	HTTP    Doer
}

// NewComputeClient constructs a dispatcher targeting the provided engine URL.
func NewComputeClient(baseURL string) *ComputeClient {
	return &ComputeClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type enqueueRequest struct {
	JobID  string `json:"job_id"`
	FileID string `json:"file_id"`
	Method string `json:"method"`
}

// Enqueue posts the job reference to the engine. Any non-2xx response is an
// error; the caller decides how to surface it.
func (c *ComputeClient) Enqueue(ctx context.Context, jobID, fileID, method string) error {
	if c == nil || c.BaseURL == "" {
		return ErrDispatcherUnavailable
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 30 * time.Second}
	}

	body, err := json.Marshal(enqueueRequest{JobID: jobID, FileID: fileID, Method: method})
	if err != nil {
		return fmt.Errorf("encode enqueue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/enqueue", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build enqueue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("enqueue call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("enqueue rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return nil
}

var _ Dispatcher = (*ComputeClient)(nil)
