package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Error("relay tick error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Tick locks one batch and dispatches it. It returns the number of events sent.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	locked := time.Now()
	sent := make([]int64, 0, len(events))
	for i, e := range events {
		if time.Since(locked) > r.lease/2 {
			if err := r.store.ExtendLease(ctx, r.relayID, remaining(events[i:]), r.lease); err != nil {
				r.log.Warn("relay extend lease failed", "err", err)
			}
			locked = time.Now()
		}
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			return 0, err
		}
	}
	return len(sent), nil
}

func remaining(events []Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
