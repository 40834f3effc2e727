package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/address/application"
	"github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
)

func newService() *application.Service {
	db := memdb.New()
	return application.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), db.Addresses(), db)
}

func home(label string, def bool) domain.Address {
	return domain.Address{Label: label, Street: "1 Main St", City: "Springfield", Country: "US", IsDefault: def}
}

func defaults(t *testing.T, svc *application.Service, userID string) []string {
	t.Helper()
	list, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	var ids []string
	for _, a := range list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestCreateDefaultReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	first, err := svc.Create(ctx, "U", home("home", true))
	require.NoError(t, err)
	second, err := svc.Create(ctx, "U", home("work", true))
	require.NoError(t, err)

	assert.Equal(t, []string{second.ID}, defaults(t, svc, "U"))

	list, _ := svc.List(ctx, "U")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCreateValidates(t *testing.T) {
	_, err := newService().Create(context.Background(), "U", domain.Address{City: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSetDefault(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	assert.Empty(t, defaults(t, svc, "U"))

	a, err := svc.Create(ctx, "U", home("a", false))
	require.NoError(t, err)
	b, err := svc.Create(ctx, "U", home("b", false))
	require.NoError(t, err)
	other, err := svc.Create(ctx, "V", home("v", true))
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(ctx, "U", a.ID))
	require.NoError(t, svc.SetDefault(ctx, "U", b.ID))
	require.NoError(t, svc.SetDefault(ctx, "U", b.ID))
	assert.Equal(t, []string{b.ID}, defaults(t, svc, "U"))

	err = svc.SetDefault(ctx, "U", other.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{other.ID}, defaults(t, svc, "V"))
}

func TestConcurrentSetDefaultLeavesExactlyOne(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	var ids []string
	for i := 0; i < 8; i++ {
		a, err := svc.Create(ctx, "U", home(fmt.Sprintf("a%d", i), false))
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.SetDefault(ctx, "U", ids[i%len(ids)]))
		}(i)
	}
	wg.Wait()

	assert.Len(t, defaults(t, svc, "U"), 1)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	a, err := svc.Create(ctx, "U", home("a", true))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "V", a.ID))
	_, err = svc.Get(ctx, "U", a.ID)
	require.NoError(t, err, "other users cannot delete it")

	require.NoError(t, svc.Delete(ctx, "U", a.ID))
	require.NoError(t, svc.Delete(ctx, "U", a.ID))
	_, err = svc.Get(ctx, "U", a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
