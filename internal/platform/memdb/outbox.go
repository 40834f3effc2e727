package memdb

import (
	"context"
	"slices"
	"time"

	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

type Outbox struct{ db *DB }

func (db *DB) Outbox() *Outbox { return &Outbox{db: db} }

func (r *Outbox) Append(ctx context.Context, ev outbox.Event) error {
	return r.db.run(ctx, "outbox.append", func(s *state) error {
		s.outboxSeq++
		ev.ID = s.outboxSeq
		ev.Status = outbox.StatusPending
		ev.CreatedAt = r.db.now()
		s.outbox = append(s.outbox, ev)
		return nil
	})
}

// Events returns a copy of every stored event, oldest first.
func (r *Outbox) Events(ctx context.Context) []outbox.Event {
	var out []outbox.Event
	_ = r.db.run(ctx, "outbox.events", func(s *state) error {
		out = slices.Clone(s.outbox)
		return nil
	})
	return out
}

func (r *Outbox) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var out []outbox.Event
	err := r.db.run(ctx, "outbox.lock", func(s *state) error {
		now := r.db.now()
		for i := range s.outbox {
			if len(out) == batchSize {
				break
			}
			ev := &s.outbox[i]
			expired := ev.Status == outbox.StatusInProgress && ev.LeaseUntil.Before(now)
			if ev.Status != outbox.StatusPending && !expired {
				continue
			}
			ev.Status = outbox.StatusInProgress
			ev.RelayID = relayID
			ev.LeaseUntil = now.Add(lease)
			out = append(out, *ev)
		}
		return nil
	})
	return out, err
}

func (r *Outbox) MarkSent(ctx context.Context, ids []int64) error {
	return r.db.run(ctx, "outbox.mark_sent", func(s *state) error {
		for i := range s.outbox {
			if slices.Contains(ids, s.outbox[i].ID) {
				s.outbox[i].Status = outbox.StatusSent
			}
		}
		return nil
	})
}

func (r *Outbox) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.db.run(ctx, "outbox.mark_failed", func(s *state) error {
		for i := range s.outbox {
			ev := &s.outbox[i]
			if ev.ID != id {
				continue
			}
			ev.RetryCount++
			ev.LastError = &errMsg
			ev.Status = outbox.StatusPending
			if ev.RetryCount >= outbox.MaxRetries {
				ev.Status = outbox.StatusFailed
			}
		}
		return nil
	})
}

func (r *Outbox) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	return r.db.run(ctx, "outbox.extend_lease", func(s *state) error {
		until := r.db.now().Add(lease)
		for i := range s.outbox {
			if s.outbox[i].RelayID == relayID && slices.Contains(ids, s.outbox[i].ID) {
				s.outbox[i].LeaseUntil = until
			}
		}
		return nil
	})
}
