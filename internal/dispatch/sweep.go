package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxtale/voxtale/internal/observe"
	"github.com/voxtale/voxtale/internal/turnlog"
	"github.com/voxtale/voxtale/pkg/memstore"
)

// Sweep defaults. The sweep's retry ceiling is deliberately distinct from
// the dispatcher's per-run attempt count: it bounds a record's lifetime
// retries so nothing retries forever.
const (
	DefaultSweepInterval   = 5 * time.Minute
	DefaultSweepMaxRetries = 5
)

// SweepOptions configures a [Sweep]. Zero values select the defaults.
type SweepOptions struct {
	// Interval between scans. Default [DefaultSweepInterval].
	Interval time.Duration

	// MaxRetries is the lifetime retry ceiling per record; records at or
	// above it are skipped. Default [DefaultSweepMaxRetries].
	MaxRetries int

	// Metrics overrides the metrics instance. Default
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger overrides the logger. Default [slog.Default].
	Logger *slog.Logger
}

func (o *SweepOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultSweepInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultSweepMaxRetries
	}
	if o.Metrics == nil {
		o.Metrics = observe.DefaultMetrics()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Sweep is the reconciliation fallback: it re-reads the durable log and
// retries unsynced records the dispatcher gave up on or never saw.
type Sweep struct {
	store  memstore.Store
	log    *turnlog.Log
	userID string
	opts   SweepOptions
}

// NewSweep creates a Sweep over log delivering to store for userID.
func NewSweep(store memstore.Store, log *turnlog.Log, userID string, opts SweepOptions) *Sweep {
	opts.applyDefaults()
	return &Sweep{store: store, log: log, userID: userID, opts: opts}
}

// Run scans periodically until ctx is cancelled. One scan runs immediately
// on start so a restart after a crash does not wait a full interval.
func (s *Sweep) Run(ctx context.Context) error {
	s.opts.Logger.Info("reconciliation sweep started",
		"interval", s.opts.Interval, "max_retries", s.opts.MaxRetries)

	s.Once(ctx)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Once(ctx)
		}
	}
}

// Once performs a single scan-and-retry pass. Exported so shutdown paths and
// tests can drive the sweep directly.
func (s *Sweep) Once(ctx context.Context) {
	entries, err := s.log.Unsynced()
	if err != nil {
		s.opts.Logger.Error("sweep read turn log failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	s.opts.Logger.Info("sweep retrying unsynced turns", "count", len(entries))

	flushed := false
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.Record.RetryCount >= s.opts.MaxRetries {
			s.opts.Logger.Warn("turn exceeded sweep retry ceiling, giving up",
				"line", entry.Line, "turn_id", entry.Record.ID,
				"retries", entry.Record.RetryCount)
			continue
		}

		if err := s.store.Insert(ctx, s.userID, entry.Record.Messages); err != nil {
			if uerr := s.log.UpdateStatus(entry.Line, false, entry.Record.RetryCount+1); uerr != nil {
				s.opts.Logger.Error("record retry count failed", "line", entry.Line, "error", uerr)
			}
			s.opts.Metrics.RecordSyncOutcome(ctx, "failed")
			s.opts.Logger.Warn("sweep retry failed", "line", entry.Line, "error", err)
			continue
		}

		if uerr := s.log.UpdateStatus(entry.Line, true, entry.Record.RetryCount); uerr != nil {
			s.opts.Logger.Error("mark record synced failed", "line", entry.Line, "error", uerr)
		}
		s.opts.Metrics.RecordSyncOutcome(ctx, "synced")
		s.opts.Logger.Info("sweep recovered turn", "line", entry.Line, "turn_id", entry.Record.ID)
		flushed = true
	}

	if flushed {
		if err := s.store.Flush(ctx, s.userID, false); err != nil {
			s.opts.Logger.Warn("store buffer flush failed", "error", err)
		}
	}
}
