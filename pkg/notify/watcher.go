package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refetcher reloads a full list from the store.
type Refetcher interface {
	Refetch(ctx context.Context) error
}

// Watcher triggers a full re-fetch whenever one of the watched tables
// changes. Deltas are never merged.
type Watcher struct {
	sub     Subscriber
	tables  map[string]bool
	target  Refetcher
	forward *Hub
	logger  *zap.Logger

	// retry is the first delay before re-subscribing after the transport
	// fails; it doubles up to maxRetry.
	retry    time.Duration
	maxRetry time.Duration
}

func NewWatcher(sub Subscriber, target Refetcher, forward *Hub, logger *zap.Logger, tables ...string) *Watcher {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return &Watcher{
		sub:      sub,
		tables:   set,
		target:   target,
		forward:  forward,
		logger:   logger,
		retry:    time.Second,
		maxRetry: 30 * time.Second,
	}
}

// Run keeps a subscription open until ctx is done. A failed or dropped
// subscription is retried with backoff, and the list is re-fetched before each
// retry since changes may have been missed meanwhile.
func (w *Watcher) Run(ctx context.Context) error {
	delay := w.retry
	for {
		delivered := false
		err := w.sub.Subscribe(ctx, func(e Event) {
			delivered = true
			w.handle(ctx, e)
		})
		if ctx.Err() != nil {
			return nil
		}
		if delivered {
			delay = w.retry
		}
		if err != nil {
			w.logger.Warn("Change subscription failed, retrying",
				zap.Duration("retry_in", delay),
				zap.Error(err))
		} else {
			w.logger.Warn("Change subscription closed, retrying", zap.Duration("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if delay *= 2; delay > w.maxRetry {
			delay = w.maxRetry
		}
		w.refetch(ctx, "resubscribe", "")
	}
}

func (w *Watcher) handle(ctx context.Context, e Event) {
	if w.forward != nil {
		_ = w.forward.Publish(ctx, e)
	}
	if w.tables[e.Table] {
		w.refetch(ctx, e.Table, string(e.Type))
	}
}

func (w *Watcher) refetch(ctx context.Context, table, eventType string) {
	if err := w.target.Refetch(ctx); err != nil {
		w.logger.Error("Re-fetch after change failed",
			zap.String("table", table),
			zap.String("type", eventType),
			zap.Error(err))
	}
}
