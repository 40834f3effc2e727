// Package app assembles the checkout engine from a set of stores and exposes
// it over HTTP.
package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-engine/internal/account"
	addrapp "github.com/dmehra2102/checkout-engine/internal/address/application"
	addrhttp "github.com/dmehra2102/checkout-engine/internal/address/infrastructure/http"
	addrpg "github.com/dmehra2102/checkout-engine/internal/address/infrastructure/postgres"
	cartapp "github.com/dmehra2102/checkout-engine/internal/cart/application"
	carthttp "github.com/dmehra2102/checkout-engine/internal/cart/infrastructure/http"
	cartpg "github.com/dmehra2102/checkout-engine/internal/cart/infrastructure/postgres"
	invapp "github.com/dmehra2102/checkout-engine/internal/inventory/application"
	invpg "github.com/dmehra2102/checkout-engine/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/checkout-engine/internal/order/application"
	orderdomain "github.com/dmehra2102/checkout-engine/internal/order/domain"
	orderhttp "github.com/dmehra2102/checkout-engine/internal/order/infrastructure/http"
	orderpg "github.com/dmehra2102/checkout-engine/internal/order/infrastructure/postgres"
	payapp "github.com/dmehra2102/checkout-engine/internal/payment/application"
	payhttp "github.com/dmehra2102/checkout-engine/internal/payment/infrastructure/http"
	paypg "github.com/dmehra2102/checkout-engine/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/checkout-engine/internal/platform/httpx"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
	"github.com/dmehra2102/checkout-engine/internal/pricing"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

type TxRunner interface {
	orderapp.TxRunner
}

// OutboxStore is written inside business transactions and drained by the
// relay.
type OutboxStore interface {
	outbox.Appender
	outbox.Store
}

// Stores is one backing store for every context. All repositories must
// share the transaction carried by Tx.
type Stores struct {
	Variants  invapp.VariantRepository
	CartLines cartapp.LineRepository
	Addresses addrapp.Repository
	Orders    orderapp.OrderRepository
	Payments  payapp.PaymentRepository
	Outbox    OutboxStore
	Tx        TxRunner
}

func MemoryStores(db *memdb.DB) Stores {
	return Stores{
		Variants:  db.Variants(),
		CartLines: db.CartLines(),
		Addresses: db.Addresses(),
		Orders:    db.Orders(),
		Payments:  db.Payments(),
		Outbox:    db.Outbox(),
		Tx:        db,
	}
}

func PostgresStores(log *slog.Logger, pool *pgxpool.Pool) Stores {
	return Stores{
		Variants:  invpg.NewRepository(log, pool),
		CartLines: cartpg.NewRepository(log, pool),
		Addresses: addrpg.NewRepository(log, pool),
		Orders:    orderpg.NewRepository(log, pool),
		Payments:  paypg.NewRepository(log, pool),
		Outbox:    postgres.NewOutboxStore(log, pool),
		Tx:        postgres.NewTxRunner(pool),
	}
}

type Options struct {
	CancelPolicy orderdomain.CancelPolicy
	Pricing      pricing.Calculator
	Metrics      *metrics.Engine
}

// App holds the engine's services.
type App struct {
	log       *slog.Logger
	Ledger    *invapp.Ledger
	Carts     *cartapp.Service
	Addresses *addrapp.Service
	Payments  *payapp.Service
	Assembler *orderapp.Assembler
	Lifecycle *orderapp.Lifecycle
	Accounts  *account.Service
}

func New(log *slog.Logger, s Stores, opts Options) *App {
	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}
	ledger := invapp.NewLedger(log, s.Variants, s.Tx, m)
	carts := cartapp.NewService(log, s.CartLines, ledger, s.Tx)
	addresses := addrapp.NewService(log, s.Addresses, s.Tx)
	payments := payapp.NewService(log, s.Payments, s.Outbox, s.Tx, m)

	return &App{
		log:       log,
		Ledger:    ledger,
		Carts:     carts,
		Addresses: addresses,
		Payments:  payments,
		Assembler: orderapp.NewAssembler(log, orderapp.AssemblerDeps{
			Orders:    s.Orders,
			Ledger:    ledger,
			Carts:     carts,
			Addresses: addresses,
			Payments:  payments,
			Pricing:   opts.Pricing,
			Outbox:    s.Outbox,
			Tx:        s.Tx,
			Metrics:   m,
		}),
		Lifecycle: orderapp.NewLifecycle(log, orderapp.LifecycleDeps{
			Orders:   s.Orders,
			Ledger:   ledger,
			Payments: payments,
			Outbox:   s.Outbox,
			Tx:       s.Tx,
			Policy:   opts.CancelPolicy,
			Metrics:  m,
		}),
		Accounts: account.NewService(log, s.CartLines, s.Addresses, s.Tx),
	}
}

// Router mounts every context's endpoints. The payment callback is the only
// route served without a caller identity. idem may be nil.
func (a *App) Router(idem idempotency.Guard) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	payhttp.NewHandler(a.log, a.Payments).Routes(r)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)
		carthttp.NewHandler(a.log, a.Carts).Routes(r)
		addrhttp.NewHandler(a.log, a.Addresses).Routes(r)
		orderhttp.NewHandler(a.log, a.Assembler, a.Lifecycle, a.Payments, idem).Routes(r)
		r.Delete("/account", a.purgeAccount)
	})
	return r
}

func (a *App) purgeAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.Accounts.PurgeUser(r.Context(), httpx.UserID(r.Context())); err != nil {
		httpx.WriteError(a.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
