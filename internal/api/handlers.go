package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

const (
	coinsEndpoint        = "/coins"
	buyEndpoint          = "/coins/buy"
	transactionsEndpoint = "/transactions"
	profileEndpoint      = "/clients/{id}/profile"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.Method, "/health")
}

func (h *Handler) ListCoinsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", coinsEndpoint))
	defer timer.ObserveDuration()

	page, err := parsePage(r.URL.Query())
	if err != nil {
		h.respondFailure(w, r, err, coinsEndpoint)
		return
	}

	result, hit, err := h.market.ListCoins(r.Context(), domain.CoinFilter{}, page)
	if err != nil {
		h.respondFailure(w, r, err, coinsEndpoint)
		return
	}
	setCacheHeader(w, hit)
	h.respondJSON(w, http.StatusOK, result, r.Method, coinsEndpoint)
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", transactionsEndpoint))
	defer timer.ObserveDuration()

	q := r.URL.Query()
	page, err := parsePage(q)
	if err != nil {
		h.respondFailure(w, r, err, transactionsEndpoint)
		return
	}
	filter, err := parseTransactionFilter(q)
	if err != nil {
		h.respondFailure(w, r, err, transactionsEndpoint)
		return
	}

	result, hit, err := h.market.ListTransactions(r.Context(), filter, page)
	if err != nil {
		h.respondFailure(w, r, err, transactionsEndpoint)
		return
	}
	setCacheHeader(w, hit)
	h.respondJSON(w, http.StatusOK, result, r.Method, transactionsEndpoint)
}

func (h *Handler) ClientProfileHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", profileEndpoint))
	defer timer.ObserveDuration()

	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, err, profileEndpoint)
		return
	}

	profile, hit, err := h.market.ClientProfile(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, err, profileEndpoint)
		return
	}
	setCacheHeader(w, hit)
	h.respondJSON(w, http.StatusOK, profile, r.Method, profileEndpoint)
}

func (h *Handler) MintCoinHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", coinsEndpoint))
	defer timer.ObserveDuration()

	var req domain.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, coinsEndpoint)
		return
	}

	coin, err := h.market.MintCoin(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err, coinsEndpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "New coin generated successfully",
		"coin":    coin,
	}, r.Method, coinsEndpoint)
}

func (h *Handler) BuyCoinHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", buyEndpoint))
	defer timer.ObserveDuration()

	var req domain.BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, buyEndpoint)
		return
	}

	tx, err := h.market.BuyCoin(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err, buyEndpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Coin purchased successfully",
		"transaction": tx,
	}, r.Method, buyEndpoint)
}
