/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from the till frontend
  5. Rate limit: Per client IP, requests per minute (off when zero)

ROUTE GROUPS:
  /api/products/*      Products and their lots
  /api/customers/*     Customers and receivables
  /api/suppliers/*     Suppliers
  /api/sales/*         Checkout, returns, write-offs
  /api/purchases/*     Receiving and purchase returns
  /api/inventory/*     Opening stock and count adjustments
  /api/payments/*      Customer and supplier settlements
  /api/expenses        Operating expenses
  /api/investments     Owner investment
  /api/accounts/*      Chart of accounts and ledgers
  /api/journal/*       Journal entries
  /api/reports/*       Trial balance, income, inventory reconciliation
  /healthz             Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		r.Use(httprate.Limit(opts.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Get("/{id}/lots", h.ListLots)
			r.Get("/{id}/quote", h.QuoteFIFO)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/outstanding", h.CustomerOutstanding)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Post("/", h.CreateSupplier)
			r.Get("/{id}", h.GetSupplier)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)
			r.Get("/outstanding", h.Outstanding)
			r.Post("/returns", h.SalesReturn)
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/write-off", h.WriteOff)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.CreatePurchase)
			r.Post("/returns", h.PurchaseReturn)
			r.Get("/outstanding", h.OutstandingPurchases)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/beginning", h.BeginningInventory)
			r.Post("/adjustments", h.Adjust)
			r.Post("/sync", h.SyncQuantities)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/customers", h.CustomerPayment)
			r.Post("/suppliers", h.SupplierPayment)
		})

		r.Post("/expenses", h.Expense)
		r.Post("/investments", h.Investment)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Get("/{name}/balance", h.AccountBalance)
			r.Get("/{name}/ledger", h.AccountLedger)
			r.Get("/{name}/summary", h.AccountSummary)
		})

		r.Route("/journal", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.PostEntry)
			r.Get("/{id}", h.GetEntry)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", h.TrialBalance)
			r.Get("/validate", h.ValidateTrialBalance)
			r.Get("/income", h.IncomeSummary)
			r.Get("/inventory", h.InventoryReconciliation)
			r.Get("/integrity", h.Integrity)
		})
	})

	return r
}
