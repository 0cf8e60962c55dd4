/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. requestLog: Structured request logging (zerolog)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

AUTHORIZATION:
  Read routes are public. Every route that writes (parties, invoices,
  prices, orders, settlement, costs) sits behind RequireAdmin.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: token issuance and verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Auth, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", auth.Login)

		r.Route("/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Get("/{id}", h.GetParty)
			r.Get("/{id}/invoices", h.GetPartyInvoices)
			r.Get("/{id}/orders", h.GetPartyOrders)
			r.With(auth.RequireAdmin).Post("/", h.CreateParty)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.With(auth.RequireAdmin).Post("/", h.CreateInvoice)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(auth.RequireAdmin).Post("/", h.CreateProduct)
		})

		r.Route("/prices", func(r chi.Router) {
			r.With(auth.RequireAdmin).Post("/", h.SetPrice)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{id}", h.GetOrder)
			r.With(auth.RequireAdmin).Post("/", h.CreateOrder)
			r.With(auth.RequireAdmin).Post("/{id}/settle", h.SettleOrder)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/{year}", h.YearReport)
			r.Get("/{year}/{month}", h.MonthReport)
		})

		r.Route("/costs", func(r chi.Router) {
			r.With(auth.RequireAdmin).Post("/", h.CreateCost)
		})
	})

	return r
}

// requestLog logs one line per request with method, path, status and
// duration, tagged with the chi request id.
func requestLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
