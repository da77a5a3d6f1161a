/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires URLs to handlers with chi. Middleware: request logging, panic
  recovery, request IDs, and CORS for the SPA frontend.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured. allowedOrigins
// lists the SPA origins permitted by CORS.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", DefaultAccountHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Post("/deposit", h.Deposit)
			r.Post("/withdraw", h.Withdraw)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/transfer", h.Transfer)
		})

		r.Route("/delegation", func(r chi.Router) {
			r.Get("/delegates", h.ListDelegates)
			r.Post("/delegates", h.AddDelegate)
			r.Delete("/delegates/{id}", h.RevokeDelegate)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/accounts", h.CreateAccount)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Delete("/accounts/{id}", h.WipeAccount)
		})
	})

	return r
}
