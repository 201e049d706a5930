package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"easel/internal/config"
)

const probeUserAgent = "Easel-Go/0.1.0"

// Source reports backend reachability. A nil error means the backend
// answered the probe; any error counts as offline.
type Source interface {
	Check(ctx context.Context) error
}

type httpSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPSource builds a Source that probes the configured health URL.
// Any HTTP response, including an error status, proves reachability;
// only transport failures count as offline.
func NewHTTPSource(cfg *config.Config) (Source, error) {
	url := strings.TrimSpace(cfg.ProbeURL())
	if url == "" {
		return nil, errors.New("connectivity probe URL not configured")
	}

	timeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &httpSource{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *httpSource) Check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, s.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	return nil
}
