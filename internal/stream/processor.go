package stream

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

	"github.com/deepsight/backend/internal/models"
)

// ErrProcessorUnavailable indicates no frame processor is configured.
var ErrProcessorUnavailable = errors.New("frame processor unavailable")

// Doer executes HTTP requests. Satisfied by *http.Client and by test fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFrameProcessor implements FrameProcessor against the external inference
// engine's synchronous frame endpoint.
type HTTPFrameProcessor struct {
	BaseURL string
	HTTP    Doer
}

// NewHTTPFrameProcessor constructs a processor targeting the provided engine URL.
func NewHTTPFrameProcessor(baseURL string) *HTTPFrameProcessor {
	return &HTTPFrameProcessor{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type processFrameRequest struct {
	Frame string `json:"frame"`
}

type processFrameResponse struct {
	EnhancedFrame string             `json:"enhanced_frame"`
	Detections    []models.Detection `json:"detections"`
	Metrics       map[string]float64 `json:"metrics"`
}

// ProcessFrame posts the encoded frame to the engine and decodes the result.
func (p *HTTPFrameProcessor) ProcessFrame(ctx context.Context, frameBase64 string) (FrameResult, error) {
	if p == nil || p.BaseURL == "" {
		return FrameResult{}, ErrProcessorUnavailable
	}
	if p.HTTP == nil {
		p.HTTP = &http.Client{Timeout: 60 * time.Second}
	}

	body, err := json.Marshal(processFrameRequest{Frame: frameBase64})
	if err != nil {
		return FrameResult{}, fmt.Errorf("encode frame request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/frames", bytes.NewReader(body))
	if err != nil {
		return FrameResult{}, fmt.Errorf("build frame request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return FrameResult{}, fmt.Errorf("frame call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return FrameResult{}, fmt.Errorf("frame processing rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload processFrameResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return FrameResult{}, fmt.Errorf("decode frame response: %w", err)
	}

	return FrameResult{
		EnhancedFrame: payload.EnhancedFrame,
		Detections:    payload.Detections,
		Metrics:       payload.Metrics,
	}, nil
}

var _ FrameProcessor = (*HTTPFrameProcessor)(nil)
