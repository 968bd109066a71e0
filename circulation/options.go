package circulation

import (
	"log/slog"
	"time"
)

type settings struct {
	logger  Logger
	metrics Metrics
	now     Clock
}

func defaultSettings() settings {
	return settings{logger: slog.Default(), metrics: noMetrics{}, now: time.Now}
}

// Option configures Resolver, Coordinator, Lifecycle and CatalogEditor.
type Option func(*settings)

func WithLogger(l Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.now = c
		}
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	return s
}
