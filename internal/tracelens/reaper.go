package tracelens

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically drops session buffers that have been idle past ttl.
type Reaper struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewReaper builds a reaper. Both ttl and interval must be positive.
func NewReaper(registry *Registry, ttl, interval time.Duration, logger *zap.Logger) (*Reaper, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: buffer ttl must be positive", ErrInvalidConfig)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: cleanup interval must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{registry: registry, ttl: ttl, interval: interval, logger: logger, now: time.Now}, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep performs one pass and returns the removed session ids.
func (r *Reaper) Sweep() []string {
	removed := r.registry.SweepExpired(r.ttl, r.now())
	for _, id := range removed {
		r.logger.Debug("removed expired log buffer", zap.String("session_id", id))
	}
	if len(removed) > 0 {
		r.logger.Info("cleaned up expired session log buffers", zap.Int("count", len(removed)))
	}
	return removed
}
