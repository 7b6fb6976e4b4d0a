package parser

import (
	"context"
	"fmt"
	"log/slog"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
	"DecreeWatcher/internal/scanner"
)

// SourceConfig selects and parameterizes the scanning strategy.
type SourceConfig struct {
	Scanner string
	URL     string
	Options map[string]string
}

// StrategySource implements ports.Fetcher via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	source   SourceConfig
	logger   *slog.Logger
}

var _ ports.Fetcher = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with the configured portal.
func NewStrategySource(reg *scanner.Registry, source SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		source:   source,
		logger:   log,
	}
}

// Fetch runs the configured scanner. Every failure is wrapped in domain.ErrFetch.
func (s *StrategySource) Fetch(ctx context.Context, searchTerm string) ([]string, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: scanner registry is not configured", domain.ErrFetch)
	}

	strategy, err := s.registry.Resolve(s.source.Scanner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	s.debug("fetch started", "scanner", strategy.Name(), "search_term", searchTerm, "url", s.source.URL)

	dates, err := strategy.Scan(ctx, scanner.Request{
		SearchTerm: searchTerm,
		URL:        s.source.URL,
		Options:    s.source.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanner %s: %w", domain.ErrFetch, strategy.Name(), err)
	}

	if s.logger != nil {
		s.logger.Info("dates found on portal", "scanner", strategy.Name(), "count", len(dates))
	}
	return dates, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
