package secrets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxDocumentSize bounds a fetched document.
const maxDocumentSize = 64 << 10

// HTTPSource fetches documents from fixed URLs.
type HTTPSource struct {
	urls   map[string]string
	client *http.Client
	log    *slog.Logger
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithURL maps a document name to a URL.
func WithURL(name, url string) HTTPOption {
	return func(s *HTTPSource) {
		s.urls[name] = url
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.log = l
		}
	}
}

// NewHTTPSource creates a source that serves the root CA from
// DefaultRootCAURL unless overridden.
func NewHTTPSource(opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		urls:   map[string]string{NameRootCA: DefaultRootCAURL},
		client: &http.Client{Timeout: 15 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPEM implements Source.
func (s *HTTPSource) FetchPEM(ctx context.Context, name string) ([]byte, error) {
	url, ok := s.urls[name]
	if !ok {
		return nil, fmt.Errorf("%w: no URL for %s", ErrNotFound, name)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.log.Debug("fetched secret",
		slog.String("name", name),
		slog.String("url", url),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

var _ Source = (*HTTPSource)(nil)
