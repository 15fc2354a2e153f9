// Package latency delays fixed responses to imitate a recommender doing real work.
package latency

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"mrecommender/pkg/config"
)

// Injector sleeps for a random duration in [minMs, maxMs] before a response is written.
// A disabled Injector returns immediately.
type Injector struct {
	logger  *slog.Logger
	enabled bool
	minMs   int
	maxMs   int
}

// New creates an injector from the "latency" sub-config
func New(cfg *config.Config, logger *slog.Logger) *Injector {
	minMs := cfg.GetIntWithDefault("min-ms", 0)
	maxMs := cfg.GetIntWithDefault("max-ms", 100)
	if minMs < 0 {
		logger.Warn("Negative latency lower bound, using 0", "minMs", minMs)
		minMs = 0
	}
	if maxMs < minMs {
		logger.Warn("Latency upper bound below lower bound, using lower bound", "minMs", minMs, "maxMs", maxMs)
		maxMs = minMs
	}

	return &Injector{
		logger:  logger,
		enabled: cfg.GetBoolWithDefault("enabled", false),
		minMs:   minMs,
		maxMs:   maxMs,
	}
}

// Enabled reports whether Wait will ever block
func (i *Injector) Enabled() bool {
	return i.enabled
}

// Duration picks the next delay
func (i *Injector) Duration() time.Duration {
	if i.minMs >= i.maxMs {
		return time.Duration(i.minMs) * time.Millisecond
	}
	return time.Duration(rand.Intn(i.maxMs-i.minMs+1)+i.minMs) * time.Millisecond
}

// Wait blocks for a random duration, or until ctx is done.
// Returns ctx.Err() when the wait was cut short.
func (i *Injector) Wait(ctx context.Context) error {
	if !i.enabled {
		return nil
	}

	d := i.Duration()
	i.logger.Debug("Injecting latency", "durationMs", d.Milliseconds())

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
