// Package memdb is an in-process store: an arena of records keyed by id with
// foreign-key indices, and copy-on-write transactions serialized by one lock.
//
// It implements every repository port of the engine and backs the unit tests
// and STORE_DRIVER=memory deployments.
package memdb

import (
	"context"
	"maps"
	"sync"
	"time"

	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	cartdomain "github.com/dmehra2102/checkout-engine/internal/cart/domain"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	orderdomain "github.com/dmehra2102/checkout-engine/internal/order/domain"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

type DB struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
	fault func(op string) error
}

type state struct {
	variants map[string]invdomain.Variant

	cartLines  map[string]cartdomain.Line
	cartByUser map[string]map[string]string // user -> variant -> line id

	orders       map[string]orderdomain.Order
	orderNumbers map[string]string
	ordersByUser map[string][]string

	payments map[string]paydomain.Payment // keyed by order id

	addresses       map[string]addrdomain.Address
	addressesByUser map[string]map[string]struct{}

	outbox    []outbox.Event
	outboxSeq int64
}

type txKey struct{}

func New() *DB {
	return &DB{
		state: &state{
			variants:        map[string]invdomain.Variant{},
			cartLines:       map[string]cartdomain.Line{},
			cartByUser:      map[string]map[string]string{},
			orders:          map[string]orderdomain.Order{},
			orderNumbers:    map[string]string{},
			ordersByUser:    map[string][]string{},
			payments:        map[string]paydomain.Payment{},
			addresses:       map[string]addrdomain.Address{},
			addressesByUser: map[string]map[string]struct{}{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetFault installs a hook consulted before every store operation. A non-nil
// return is surfaced as a store failure.
func (db *DB) SetFault(fn func(op string) error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fault = fn
}

// InTx runs fn against a private copy of the store and publishes the copy only
// when fn succeeds. Nested calls join the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}
	db.state = work
	return nil
}

// run applies op to the transaction bound to ctx, or to the live state under
// the lock. op must validate before it mutates.
func (db *DB) run(ctx context.Context, name string, op func(s *state) error) error {
	if s, ok := ctx.Value(txKey{}).(*state); ok {
		if err := db.check(name); err != nil {
			return err
		}
		return op(s)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(name); err != nil {
		return err
	}
	return op(db.state)
}

func (db *DB) check(name string) error {
	if db.fault == nil {
		return nil
	}
	return apperr.Unavailable(name, db.fault(name))
}

func (s *state) clone() *state {
	c := &state{
		variants:        maps.Clone(s.variants),
		cartLines:       maps.Clone(s.cartLines),
		cartByUser:      make(map[string]map[string]string, len(s.cartByUser)),
		orders:          maps.Clone(s.orders),
		orderNumbers:    maps.Clone(s.orderNumbers),
		ordersByUser:    make(map[string][]string, len(s.ordersByUser)),
		payments:        maps.Clone(s.payments),
		addresses:       maps.Clone(s.addresses),
		addressesByUser: make(map[string]map[string]struct{}, len(s.addressesByUser)),
		outbox:          append([]outbox.Event(nil), s.outbox...),
		outboxSeq:       s.outboxSeq,
	}
	for k, v := range s.cartByUser {
		c.cartByUser[k] = maps.Clone(v)
	}
	for k, v := range s.ordersByUser {
		c.ordersByUser[k] = append([]string(nil), v...)
	}
	for k, v := range s.addressesByUser {
		c.addressesByUser[k] = maps.Clone(v)
	}
	return c
}
