package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinmarket_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinmarket_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Marketplace is the service surface the HTTP layer drives.
type Marketplace interface {
	ListCoins(ctx context.Context, f domain.CoinFilter, page domain.PageRequest) (*domain.CoinPage, bool, error)
	ListTransactions(ctx context.Context, f domain.TransactionFilter, page domain.PageRequest) (*domain.TransactionPage, bool, error)
	ClientProfile(ctx context.Context, clientID int64) (*domain.ClientProfile, bool, error)
	BuyCoin(ctx context.Context, req domain.BuyRequest) (*domain.Transaction, error)
	MintCoin(ctx context.Context, req domain.MintRequest) (*domain.Coin, error)
}

type Handler struct {
	market Marketplace
	log    *slog.Logger
}

func NewHandler(m Marketplace, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{market: m, log: logger}
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

// respondFailure maps a service error onto a status code. Unexpected errors
// are logged and answered with a generic message.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error, endpoint string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
	case errors.Is(err, domain.ErrAlreadyOwned):
		h.respondError(w, http.StatusBadRequest, "Coin already owned", r.Method, endpoint)
	case errors.Is(err, domain.ErrCapacityExhausted):
		h.respondError(w, http.StatusBadRequest, "No unique bit combination available", r.Method, endpoint)
	case errors.Is(err, domain.ErrCoinNotFound):
		h.respondError(w, http.StatusNotFound, "Coin not found", r.Method, endpoint)
	case errors.Is(err, domain.ErrClientNotFound):
		h.respondError(w, http.StatusNotFound, "Client not found", r.Method, endpoint)
	case errors.Is(err, domain.ErrTimeout):
		h.respondError(w, http.StatusGatewayTimeout, "Request timed out", r.Method, endpoint)
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", r.Method, endpoint)
	}
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
		return
	}
	w.Header().Set("X-Cache", "MISS")
}
