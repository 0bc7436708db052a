// Package retention runs the periodic audit-log purge.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shiprelay/internal/metrics"
	"shiprelay/internal/store"
)

// Sweeper deletes audit entries older than Age on every tick. It is
// optional: the cleanup HTTP endpoint covers deployments that schedule the
// purge externally.
type Sweeper struct {
	Store    store.Store
	Log      *zap.SugaredLogger
	Age      time.Duration
	Interval time.Duration
	Stop     chan struct{}
}

func NewSweeper(s store.Store, log *zap.SugaredLogger, age, interval time.Duration) *Sweeper {
	return &Sweeper{Store: s, Log: log, Age: age, Interval: interval, Stop: make(chan struct{})}
}

func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.Store.PurgeAuditLogsOlderThan(ctx, s.Age)
	if err != nil {
		s.Log.Errorw("retention sweep failed", "err", err)
		return
	}
	if n > 0 {
		metrics.AuditPurged.Add(float64(n))
		s.Log.Infow("retention sweep done", "deleted", n, "olderThan", s.Age.String())
	}
}
