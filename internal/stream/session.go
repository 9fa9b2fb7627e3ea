package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deepsight/backend/internal/logging"
	"github.com/deepsight/backend/internal/models"
)

// FrameResult is what the inline processing contract returns for one frame.
type FrameResult struct {
	EnhancedFrame string
	Detections    []models.Detection
	Metrics       map[string]float64
}

// FrameProcessor is the inline processing contract supplied by the external
// compute collaborator. Calls may take non-trivial time; the handler bounds
// them with FrameTimeout.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frameBase64 string) (FrameResult, error)
}

// TokenValidator checks bearer credentials when channel auth is enabled.
type TokenValidator interface {
	Validate(token string) (string, error)
}

type inboundFrame struct {
	Frame   string `json:"frame"`
	FrameID string `json:"frame_id"`
}

type frameResponse struct {
	FrameID       string             `json:"frame_id"`
	EnhancedFrame string             `json:"enhanced_frame"`
	Detections    []models.Detection `json:"detections"`
	Metrics       map[string]float64 `json:"metrics"`
}

type frameError struct {
	Error   string `json:"error"`
	FrameID string `json:"frame_id"`
}

// Handler maintains one full-duplex channel per connected client and
// processes inbound frames inline, outside the job queue. The session holds
// no state beyond the open connection; each frame is independent, and
// responses are emitted in arrival order.
type Handler struct {
	Processor FrameProcessor

	// FrameTimeout bounds one ProcessFrame call. Zero disables the bound.
	FrameTimeout time.Duration

	// RequireAuth gates the upgrade behind the same bearer validation used
	// by the REST endpoints. The observed protocol leaves the channel open;
	// enabling this is the hardened variant.
	RequireAuth bool
	Tokens      TokenValidator

	upgrader websocket.Upgrader
}

// NewHandler constructs a streaming handler around the provided processor.
func NewHandler(processor FrameProcessor, frameTimeout time.Duration) *Handler {
	return &Handler{
		Processor:    processor,
		FrameTimeout: frameTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the per-connection frame loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.RequireAuth {
		if _, err := h.authenticate(r); err != nil {
			logger.Warn("streaming upgrade rejected", "error", err)
			http.Error(w, "could not validate credentials", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger.Info("streaming session established")
	h.serve(ctx, conn, logger)
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Info("streaming session closed")
			} else {
				logger.Error("streaming session terminated", "error", err)
			}
			return
		}

		var msg inboundFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			if writeErr := conn.WriteJSON(frameError{Error: "Invalid message format", FrameID: "unknown"}); writeErr != nil {
				logger.Error("streaming write failed", "error", writeErr)
				return
			}
			continue
		}

		frameID := msg.FrameID
		if frameID == "" {
			frameID = "unknown"
		}

		if msg.Frame == "" {
			if err := conn.WriteJSON(frameError{Error: "No frame data provided", FrameID: frameID}); err != nil {
				logger.Error("streaming write failed", "error", err)
				return
			}
			continue
		}

		result, err := h.process(ctx, msg.Frame)
		if err != nil {
			// A single frame failure is not fatal to the session.
			logger.Error("frame processing error", "frameId", frameID, "error", err)
			if writeErr := conn.WriteJSON(frameError{Error: err.Error(), FrameID: frameID}); writeErr != nil {
				logger.Error("streaming write failed", "error", writeErr)
				return
			}
			continue
		}

		detections := result.Detections
		if detections == nil {
			detections = []models.Detection{}
		}

		if err := conn.WriteJSON(frameResponse{
			FrameID:       frameID,
			EnhancedFrame: result.EnhancedFrame,
			Detections:    detections,
			Metrics:       result.Metrics,
		}); err != nil {
			logger.Error("streaming write failed", "error", err)
			return
		}
	}
}

func (h *Handler) process(ctx context.Context, frame string) (FrameResult, error) {
	if h.Processor == nil {
		return FrameResult{}, ErrProcessorUnavailable
	}

	processCtx, span := logging.StartSpan(ctx, "stream.process_frame")
	defer span.End()

	if h.FrameTimeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(processCtx, h.FrameTimeout)
		defer cancel()
	}

	return h.Processor.ProcessFrame(processCtx, frame)
}

func (h *Handler) authenticate(r *http.Request) (string, error) {
	if h.Tokens == nil {
		return "", errors.New("token validator not configured")
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}

	return h.Tokens.Validate(token)
}
