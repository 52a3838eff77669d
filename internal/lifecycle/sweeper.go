// Package lifecycle evicts sessions that have outlived their TTL.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/pointflow/pointflow/internal/sessions"
)

// DefaultInterval is how often expired sessions are swept.
const DefaultInterval = time.Minute

// Evicter is the part of the session store the sweeper needs.
type Evicter interface {
	DeleteExpired(now time.Time) []sessions.Evicted
}

// Sweeper periodically removes expired sessions and tells onEvict which
// sessions went away so their connections can be released.
type Sweeper struct {
	store    Evicter
	interval time.Duration
	onEvict  func([]sessions.Evicted)
	now      func() time.Time
	logger   *slog.Logger
}

func NewSweeper(store Evicter, interval time.Duration, onEvict func([]sessions.Evicted), logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		onEvict:  onEvict,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one eviction pass and returns the number of sessions removed.
func (s *Sweeper) Sweep() int {
	evicted := s.store.DeleteExpired(s.now())
	for _, e := range evicted {
		s.logger.Info("expired session cleaned up", "code", e.Code, "session_id", e.ID)
	}
	if len(evicted) > 0 && s.onEvict != nil {
		s.onEvict(evicted)
	}
	return len(evicted)
}
