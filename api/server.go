/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, carried into log lines
  2. Logger:     zap request log (method, route, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request count and latency per route pattern
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/auth/login       Public
  /api/*                Session token required (when auth is configured)
  /healthz, /metrics    Public, outside /api

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Session tokens
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/metrics"
)

// DefaultAllowedOrigins are the dev frontends.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			if h.Auth != nil {
				r.Use(h.Auth.Middleware(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				}))
			}

			r.Get("/auth/check", h.CheckAuth)

			// Customer routes
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/summary", h.GetCustomersSummary)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Get("/{id}/transactions", h.GetCustomerTransactions)
				r.Get("/{id}/summary", h.GetCustomerSummary)
				r.Get("/{id}/statement", h.GetCustomerStatement)
			})

			// Transaction routes
			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", h.CreateTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			// Nozzle routes
			r.Route("/nozzles", func(r chi.Router) {
				r.Get("/", h.ListNozzles)
				r.Put("/{id}", h.UpdateNozzlePrice)
			})

			// Sales routes
			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.GetSalesByDate)
				r.Post("/", h.SaveSales)
				r.Get("/last-readings", h.GetLastReadings)
				r.Get("/sheet", h.GetSalesSheet)
				r.Get("/summary", h.GetSalesSummary)
			})

			// Expense routes
			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.CreateExpense)
				r.Get("/summary", h.GetExpenseSummary)
				r.Put("/{id}", h.UpdateExpense)
				r.Delete("/{id}", h.DeleteExpense)
			})

			r.Get("/dashboard", h.GetDashboard)

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Post("/export", h.ExportReport)
				r.Get("/download", h.DownloadReport)
			})

			r.Post("/backup", h.CreateBackup)
		})
	})

	return r
}

// requestLogger logs one line per request and tags the context with the
// request id so service logs can be correlated.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			log.WithContext(ctx).Infow("request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
