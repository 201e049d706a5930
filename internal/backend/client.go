package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/shape"
)

const userAgent = "Easel-Go/0.1.0"

// Client posts canvas operations to the backend. Operations carry
// their original IDs so the backend can deduplicate replays.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// opEnvelope is the wire form of a replayed operation.
type opEnvelope struct {
	OpID       string        `json:"opId"`
	Kind       string        `json:"kind"`
	Shapes     []shape.Shape `json:"shapes,omitempty"`
	ShapeIDs   []string      `json:"shapeIds,omitempty"`
	ActorID    string        `json:"actorId"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
}

// NewClient builds a backend client from the configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base URL not configured")
	}

	timeout := time.Duration(cfg.Backend.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Backend.APIToken),
		client:  &http.Client{Timeout: timeout},
		logger:  logging.WithComponent(logger, "backend"),
	}, nil
}

// Send posts a single operation. It satisfies queue.TransportFunc as a
// method value, so the engine wires it directly as its transport.
func (c *Client) Send(ctx context.Context, op queue.Op) error {
	envelope := opEnvelope{
		OpID:       op.ID,
		Kind:       string(op.Kind),
		Shapes:     op.Shapes,
		ShapeIDs:   op.ShapeIDs,
		ActorID:    op.ActorID,
		EnqueuedAt: op.EnqueuedAt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode operation %s: %w", op.ID, err)
	}

	endpoint := fmt.Sprintf("%s/canvases/%s/ops", c.baseURL, url.PathEscape(op.CanvasID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send operation %s: %w", op.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("backend returned %d for operation %s: %s",
			resp.StatusCode, op.ID, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("operation accepted",
		slog.String(logging.FieldOpID, op.ID),
		slog.String(logging.FieldOpKind, string(op.Kind)),
		slog.String(logging.FieldCanvasID, op.CanvasID))
	return nil
}
