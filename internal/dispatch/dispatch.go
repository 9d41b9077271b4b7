// Package dispatch delivers completed conversation turns to the memory
// store.
//
// It has two cooperating paths sharing the durable turn log. The
// SyncDispatcher is the immediate path: a bounded in-memory queue drained by
// a single worker that retries a few times with a fixed delay and then moves
// on. The ReconciliationSweep is the fallback path: a periodic scan of the
// log for records the dispatcher failed to deliver or never saw (process
// crash, full queue), with its own higher retry ceiling. Durability comes
// from the log, never from the queue.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voxtale/voxtale/internal/observe"
	"github.com/voxtale/voxtale/internal/turnlog"
	"github.com/voxtale/voxtale/pkg/memstore"
)

// Dispatcher defaults.
const (
	DefaultQueueSize  = 1000
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Options configures a [Dispatcher]. Zero values select the defaults.
type Options struct {
	// QueueSize bounds the in-memory queue. Default [DefaultQueueSize].
	QueueSize int

	// MaxRetries is the total number of delivery attempts per record before
	// the dispatcher gives up and leaves it to the sweep. Default
	// [DefaultMaxRetries].
	MaxRetries int

	// RetryDelay is the fixed pause between failed attempts. Default
	// [DefaultRetryDelay].
	RetryDelay time.Duration

	// Metrics overrides the metrics instance. Default
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger overrides the logger. Default [slog.Default].
	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Metrics == nil {
		o.Metrics = observe.DefaultMetrics()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Enqueued uint64
	Synced   uint64
	Failed   uint64
	Dropped  uint64
}

// Dispatcher is the immediate sync path. Enqueue never blocks; delivery
// happens on the single worker started by Run.
type Dispatcher struct {
	store  memstore.Store
	log    *turnlog.Log
	userID string
	opts   Options

	queue chan turnlog.Entry

	enqueued atomic.Uint64
	synced   atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a Dispatcher delivering records for userID from log to store.
func New(store memstore.Store, log *turnlog.Log, userID string, opts Options) *Dispatcher {
	opts.applyDefaults()
	return &Dispatcher{
		store:  store,
		log:    log,
		userID: userID,
		opts:   opts,
		queue:  make(chan turnlog.Entry, opts.QueueSize),
	}
}

// Enqueue offers an entry to the worker without blocking. Returns false when
// the queue is full; the entry stays in the durable log for the sweep.
func (d *Dispatcher) Enqueue(entry turnlog.Entry) bool {
	select {
	case d.queue <- entry:
		d.enqueued.Add(1)
		d.opts.Metrics.RecordSyncOutcome(context.Background(), "enqueued")
		return true
	default:
		d.dropped.Add(1)
		d.opts.Metrics.RecordSyncOutcome(context.Background(), "dropped")
		return false
	}
}

// Run drains the queue until ctx is cancelled. One bad record never stalls
// the queue: after exhausting retries the worker moves to the next entry.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.opts.Logger.Info("sync dispatcher started",
		"queue_size", d.opts.QueueSize,
		"max_retries", d.opts.MaxRetries,
		"retry_delay", d.opts.RetryDelay)
	for {
		select {
		case <-ctx.Done():
			d.opts.Logger.Info("sync dispatcher stopping", "pending", len(d.queue))
			return ctx.Err()
		case entry := <-d.queue:
			d.deliver(ctx, entry)
		}
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Synced:   d.synced.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}

// deliver attempts up to MaxRetries inserts for one record and updates its
// durable status to match the outcome.
func (d *Dispatcher) deliver(ctx context.Context, entry turnlog.Entry) {
	start := time.Now()
	retries := entry.Record.RetryCount

	for attempt := 1; attempt <= d.opts.MaxRetries; attempt++ {
		err := d.store.Insert(ctx, d.userID, entry.Record.Messages)
		if err == nil {
			d.flush(ctx)
			if uerr := d.log.UpdateStatus(entry.Line, true, retries); uerr != nil {
				d.opts.Logger.Error("mark record synced failed",
					"line", entry.Line, "error", uerr)
			}
			d.synced.Add(1)
			d.opts.Metrics.RecordSyncOutcome(ctx, "synced")
			d.opts.Metrics.RecordSyncDelivery(ctx, time.Since(start))
			d.opts.Logger.Debug("turn synced",
				"line", entry.Line, "turn_id", entry.Record.ID, "attempts", attempt)
			return
		}

		retries++
		d.opts.Logger.Warn("sync attempt failed",
			"line", entry.Line, "attempt", attempt, "error", err)

		if attempt < d.opts.MaxRetries {
			select {
			case <-ctx.Done():
				d.recordFailure(ctx, entry, retries)
				return
			case <-time.After(d.opts.RetryDelay):
			}
		}
	}
	d.recordFailure(ctx, entry, retries)
}

func (d *Dispatcher) recordFailure(ctx context.Context, entry turnlog.Entry, retries int) {
	if err := d.log.UpdateStatus(entry.Line, false, retries); err != nil {
		d.opts.Logger.Error("record retry count failed", "line", entry.Line, "error", err)
	}
	d.failed.Add(1)
	d.opts.Metrics.RecordSyncOutcome(ctx, "failed")
	d.opts.Logger.Warn("turn left for reconciliation sweep",
		"line", entry.Line, "turn_id", entry.Record.ID, "retries", retries)
}

// flush asks the store to process its buffer. Failure here does not affect
// sync status: the insert already succeeded.
func (d *Dispatcher) flush(ctx context.Context) {
	if err := d.store.Flush(ctx, d.userID, false); err != nil {
		d.opts.Logger.Warn("store buffer flush failed", "error", err)
	}
}
