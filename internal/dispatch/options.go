package dispatch

import (
	"context"
	"log/slog"
	"time"

	"tessen/pkg/tessen"
)

const defaultQuietPeriod = time.Second

// config stores resolved dispatcher settings after option application.
type config struct {
	logger      *slog.Logger
	quietPeriod time.Duration
	onFailure   tessen.FailureSink
	gateway     FileGateway
}

// Option mutates dispatcher construction configuration.
type Option func(*config)

// defaultConfig returns production defaults: one-second debounce quiet
// period and failure logging through slog.
func defaultConfig() config {
	logger := slog.Default()

	return config{
		logger:      logger,
		quietPeriod: defaultQuietPeriod,
		onFailure: func(ctx context.Context, failure tessen.Failure) {
			logger.ErrorContext(ctx, "dispatch failure",
				"kind", failure.Kind,
				"scope", failure.Scope,
				"correlation_id", failure.CorrelationID,
				"error", failure.Err,
			)
		},
	}
}

// WithLogger configures the logger used for diagnostics and the default
// failure sink.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			return
		}

		cfg.logger = logger
		cfg.onFailure = func(ctx context.Context, failure tessen.Failure) {
			logger.ErrorContext(ctx, "dispatch failure",
				"kind", failure.Kind,
				"scope", failure.Scope,
				"correlation_id", failure.CorrelationID,
				"error", failure.Err,
			)
		}
	}
}

// WithFailureSink configures the single error channel isolated failures are
// reported through.
func WithFailureSink(sink tessen.FailureSink) Option {
	return func(cfg *config) {
		if sink != nil {
			cfg.onFailure = sink
		}
	}
}

// WithQuietPeriod configures the forward-aggregation debounce window.
func WithQuietPeriod(period time.Duration) Option {
	return func(cfg *config) {
		if period > 0 {
			cfg.quietPeriod = period
		}
	}
}

// WithFileGateway overrides the file-lookup collaborator used for
// attachment enrichment. Defaults to the dispatcher's bot client.
func WithFileGateway(gateway FileGateway) Option {
	return func(cfg *config) {
		if gateway != nil {
			cfg.gateway = gateway
		}
	}
}
