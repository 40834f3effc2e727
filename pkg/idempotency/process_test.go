package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyGuard fails the first failSeen claims.
type flakyGuard struct {
	*memGuard
	failSeen int
}

func (g *flakyGuard) Seen(ctx context.Context, key string) (bool, error) {
	if g.failSeen > 0 {
		g.failSeen--
		return false, errors.New("redis: connection refused")
	}
	return g.memGuard.Seen(ctx, key)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fast() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

func TestProcessRetriesUntilApplied(t *testing.T) {
	g := &memGuard{keys: map[string]bool{}}
	calls := 0
	err := Process(context.Background(), quiet(), g, "k", fast(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errors.New("store unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, g.keys["k"], "claim is kept once applied")
}

func TestProcessRetriesFailedClaim(t *testing.T) {
	g := &flakyGuard{memGuard: &memGuard{keys: map[string]bool{}}, failSeen: 2}
	calls := 0
	err := Process(context.Background(), quiet(), g, "k", fast(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProcessSkipsDuplicates(t *testing.T) {
	g := &memGuard{keys: map[string]bool{"k": true}}
	calls := 0
	err := Process(context.Background(), quiet(), g, "k", fast(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestProcessReleasesClaimWhenContextEnds(t *testing.T) {
	g := &memGuard{keys: map[string]bool{}}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Process(ctx, quiet(), g, "k", fast(), func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("store unavailable")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, g.keys["k"], "redelivered message must not look like a duplicate")
}
