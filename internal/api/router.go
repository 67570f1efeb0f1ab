package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter wires the HTTP surface. Mutating routes share limiter.
func NewRouter(h *Handler, limiter *rate.Limiter, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger))
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/coins", h.ListCoinsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/clients/{id}/profile", h.ClientProfileHandler).Methods(http.MethodGet)

	limited := RateLimit(limiter)
	apiV1.Handle("/coins", limited(http.HandlerFunc(h.MintCoinHandler))).Methods(http.MethodPost)
	apiV1.Handle("/coins/buy", limited(http.HandlerFunc(h.BuyCoinHandler))).Methods(http.MethodPost)
	return r
}
