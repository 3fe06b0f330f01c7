package workers

import (
	"context"
	"log/slog"
	"time"

	"careerlink/contract"
	"careerlink/domain"
	"careerlink/internal/metrics"
)

// Ensure *PresenceSweepWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*PresenceSweepWorker)(nil)

// PresenceSweepWorker periodically compares every session's lastActiveAt
// against the idle thresholds, demoting online -> away -> offline. Every
// transition is broadcast to the user's conversation partners so their
// rendered presence stays current.
type PresenceSweepWorker struct {
	log          *slog.Logger
	registry     contract.IPresenceRegistry
	mux          contract.IMultiplexer
	interval     time.Duration
	awayAfter    time.Duration
	offlineAfter time.Duration
}

func NewPresenceSweepWorker(
	log *slog.Logger,
	registry contract.IPresenceRegistry,
	mux contract.IMultiplexer,
	interval, awayAfter, offlineAfter time.Duration,
) *PresenceSweepWorker {
	return &PresenceSweepWorker{
		log:          log,
		registry:     registry,
		mux:          mux,
		interval:     interval,
		awayAfter:    awayAfter,
		offlineAfter: offlineAfter,
	}
}

func (w *PresenceSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case now := <-ticker.C:
			w.sweep(ctx, now.UTC())
		}
	}
}

func (w *PresenceSweepWorker) sweep(ctx context.Context, now time.Time) {
	transitioned := w.registry.Sweep(now, w.awayAfter, w.offlineAfter)
	for _, session := range transitioned {
		w.log.Debug("Presence transition",
			"user_id", session.UserID, "status", session.Status)
		w.mux.BroadcastPresence(ctx, session)
	}

	counts := w.registry.CountByStatus()
	for _, status := range []domain.PresenceStatus{domain.StatusOnline, domain.StatusAway} {
		metrics.PresenceByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
