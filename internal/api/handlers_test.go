package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/punchamoorthee/coinmarket/internal/api"
	"github.com/punchamoorthee/coinmarket/internal/cache"
	"github.com/punchamoorthee/coinmarket/internal/domain"
	"github.com/punchamoorthee/coinmarket/internal/service"
	"github.com/punchamoorthee/coinmarket/internal/service/mocks"
	"github.com/punchamoorthee/coinmarket/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var testOptions = service.Options{
	MaxBit:       999,
	MinValue:     10000,
	MaxValue:     100000,
	Timeout:      5 * time.Second,
	MintAttempts: 2,
}

type server struct {
	store  *store.SQLiteStore
	router http.Handler
}

func newServer(t *testing.T, limiter *rate.Limiter) *server {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	market := service.NewMarketplace(s, cache.New(time.Minute), testOptions, discard)
	return &server{store: s, router: api.NewRouter(api.NewHandler(market, discard), limiter, discard)}
}

func (s *server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) client(t *testing.T, name string) int64 {
	t.Helper()
	id, err := s.store.CreateClient(context.Background(), domain.Client{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return id
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestListCoinsSetsCacheHeader(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/coins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"coins":[],"totalCount":0,"hasAvailableCombinations":true}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/coins?page=1&limit=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestListCoinsRejectsBadPaging(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/coins?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMintThenBuyFlow(t *testing.T) {
	s := newServer(t, nil)
	issuer := s.client(t, "issuer")
	buyer := s.client(t, "buyer")

	rec := s.do(t, http.MethodPost, "/api/v1/coins", `{"issuerId":`+itoa(issuer)+`,"value":50000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var minted struct {
		Message string      `json:"message"`
		Coin    domain.Coin `json:"coin"`
	}
	decode(t, rec, &minted)
	assert.NotEmpty(t, minted.Message)
	assert.Equal(t, domain.Triple{B1: 1, B2: 2, B3: 3}, minted.Coin.Bits)

	// Minted coins belong to the issuer, so buying one is refused.
	rec = s.do(t, http.MethodPost, "/api/v1/coins/buy", `{"coinId":`+itoa(minted.Coin.ID)+`,"buyerId":`+itoa(buyer)+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unowned, err := s.store.InsertCoin(context.Background(), domain.Triple{B1: 2, B2: 3, B3: 4}, 12000, nil)
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/api/v1/coins/buy", `{"coinId":`+itoa(unowned.ID)+`,"buyerId":`+itoa(buyer)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bought struct {
		Message     string             `json:"message"`
		Transaction domain.Transaction `json:"transaction"`
	}
	decode(t, rec, &bought)
	assert.Equal(t, unowned.ID, bought.Transaction.CoinID)
	assert.Equal(t, buyer, bought.Transaction.BuyerID)
	assert.EqualValues(t, 12000, bought.Transaction.Amount)

	rec = s.do(t, http.MethodGet, "/api/v1/transactions?buyerName=BUY", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.TransactionPage
	decode(t, rec, &page)
	assert.EqualValues(t, 1, page.TotalCount)
	require.Len(t, page.Transactions, 1)
	assert.NotEmpty(t, page.Transactions[0].ComputedIdentifier)

	rec = s.do(t, http.MethodGet, "/api/v1/clients/"+itoa(buyer)+"/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile domain.ClientProfile
	decode(t, rec, &profile)
	assert.EqualValues(t, 1, profile.TransactionsCount)
	assert.EqualValues(t, 1, profile.TotalCoins)
	assert.EqualValues(t, 12000, profile.TotalValue)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newServer(t, nil)
	buyer := s.client(t, "buyer")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/v1/coins/buy", `{`, http.StatusBadRequest},
		{"missing buy fields", http.MethodPost, "/api/v1/coins/buy", `{}`, http.StatusBadRequest},
		{"unknown coin", http.MethodPost, "/api/v1/coins/buy", `{"coinId":999,"buyerId":` + itoa(buyer) + `}`, http.StatusNotFound},
		{"value below range", http.MethodPost, "/api/v1/coins", `{"issuerId":` + itoa(buyer) + `,"value":5}`, http.StatusBadRequest},
		{"unknown issuer", http.MethodPost, "/api/v1/coins", `{"issuerId":999,"value":50000}`, http.StatusNotFound},
		{"bad date", http.MethodGet, "/api/v1/transactions?startDate=soon", "", http.StatusBadRequest},
		{"bad profile id", http.MethodGet, "/api/v1/clients/abc/profile", "", http.StatusBadRequest},
		{"unknown profile", http.MethodGet, "/api/v1/clients/999/profile", "", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().ListCoins(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, int64(0), io.ErrUnexpectedEOF)

	market := service.NewMarketplace(ledger, cache.New(time.Minute), testOptions, discard)
	router := api.NewRouter(api.NewHandler(market, discard), rate.NewLimiter(rate.Inf, 1), discard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/coins", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
}

func TestTimeoutMapsToGatewayTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().ClientProfile(gomock.Any(), int64(1)).
		DoAndReturn(func(ctx context.Context, _ int64) (*domain.ClientProfile, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	opts := testOptions
	opts.Timeout = 10 * time.Millisecond
	market := service.NewMarketplace(ledger, cache.New(time.Minute), opts, discard)
	router := api.NewRouter(api.NewHandler(market, discard), rate.NewLimiter(rate.Inf, 1), discard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients/1/profile", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMutationsAreRateLimited(t *testing.T) {
	s := newServer(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	rec := s.do(t, http.MethodPost, "/api/v1/coins/buy", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/coins/buy", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited.
	rec = s.do(t, http.MethodGet, "/api/v1/coins", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
