package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MultiSource routes names to dedicated sources and tries the fallbacks in
// order for everything else.
type MultiSource struct {
	routes    map[string]Source
	fallbacks []Source
	log       *slog.Logger
}

// NewMultiSource creates a source trying fallbacks in order.
func NewMultiSource(logger *slog.Logger, fallbacks ...Source) *MultiSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSource{
		routes:    make(map[string]Source),
		fallbacks: fallbacks,
		log:       logger,
	}
}

// Route sends every request for name to src.
func (m *MultiSource) Route(name string, src Source) *MultiSource {
	m.routes[name] = src
	return m
}

// FetchPEM implements Source.
func (m *MultiSource) FetchPEM(ctx context.Context, name string) ([]byte, error) {
	if src, ok := m.routes[name]; ok {
		return src.FetchPEM(ctx, name)
	}

	var errs []error
	for i, src := range m.fallbacks {
		data, err := src.FetchPEM(ctx, name)
		if err == nil {
			return data, nil
		}
		m.log.Debug("secret source failed", slog.String("name", name), slog.Int("source", i), "err", err)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	joined := errors.Join(errs...)
	for _, err := range errs {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, joined)
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, name, joined)
}

var _ Source = (*MultiSource)(nil)
