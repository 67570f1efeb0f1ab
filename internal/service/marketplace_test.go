package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/coinmarket/internal/cache"
	"github.com/punchamoorthee/coinmarket/internal/domain"
	"github.com/punchamoorthee/coinmarket/internal/identifier"
	"github.com/punchamoorthee/coinmarket/internal/service"
	"github.com/punchamoorthee/coinmarket/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func defaultOptions() service.Options {
	return service.Options{
		MaxBit:       999,
		MinValue:     10000,
		MaxValue:     100000,
		Timeout:      5 * time.Second,
		MintAttempts: 2,
	}
}

type fixture struct {
	store  *store.SQLiteStore
	market *service.Marketplace
}

func newFixture(t *testing.T, opts service.Options, storeOpts ...store.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:", storeOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return &fixture{
		store:  s,
		market: service.NewMarketplace(s, cache.New(time.Minute), opts, discard),
	}
}

func (f *fixture) client(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.store.CreateClient(context.Background(), domain.Client{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return id
}

func (f *fixture) unownedCoin(t *testing.T, bits domain.Triple, value int64) int64 {
	t.Helper()
	c, err := f.store.InsertCoin(context.Background(), bits, value, nil)
	require.NoError(t, err)
	return c.ID
}

func TestMintCoinValueBounds(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	issuer := f.client(t, "issuer")

	_, err := f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 5})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 100001})
	assert.ErrorIs(t, err, domain.ErrValidation)

	coin, err := f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 50000})
	require.NoError(t, err)
	assert.Equal(t, domain.Triple{B1: 1, B2: 2, B3: 3}, coin.Bits)
	assert.EqualValues(t, 50000, coin.Value)
	require.NotNil(t, coin.OwnerID)
	assert.Equal(t, issuer, *coin.OwnerID)
}

func TestMintCoinRequiresIssuer(t *testing.T) {
	f := newFixture(t, defaultOptions())
	_, err := f.market.MintCoin(context.Background(), domain.MintRequest{Value: 50000})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.market.MintCoin(context.Background(), domain.MintRequest{IssuerID: 77, Value: 50000})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestMintCoinAllocatesLexicographically(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	issuer := f.client(t, "issuer")
	f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 3}, 10000)

	coin, err := f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 20000})
	require.NoError(t, err)
	assert.Equal(t, domain.Triple{B1: 1, B2: 2, B3: 4}, coin.Bits)
}

func TestMintCoinCapacityExhausted(t *testing.T) {
	opts := defaultOptions()
	opts.MaxBit = 3
	f := newFixture(t, opts)
	ctx := context.Background()
	issuer := f.client(t, "issuer")

	page, _, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.True(t, page.HasAvailableCombinations)

	_, err = f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 50000})
	require.NoError(t, err)

	_, err = f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 50000})
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)

	page, hit, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.False(t, hit, "mint must invalidate the cache")
	assert.False(t, page.HasAvailableCombinations)
	assert.EqualValues(t, 1, page.TotalCount)
}

func TestConcurrentMintsKeepTriplesUnique(t *testing.T) {
	const minters = 5
	opts := defaultOptions()
	opts.MintAttempts = minters
	f := newFixture(t, opts)
	ctx := context.Background()
	issuer := f.client(t, "issuer")

	var wg sync.WaitGroup
	errs := make([]error, minters)
	for i := 0; i < minters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 10000})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	used, err := f.store.ListUsedTriples(ctx)
	require.NoError(t, err)
	assert.Len(t, used, minters)
	for k := 3; k < 3+minters; k++ {
		assert.Contains(t, used, domain.Triple{B1: 1, B2: 2, B3: k})
	}
}

func TestListCoinsEnrichesAndCaches(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	bits := domain.Triple{B1: 4, B2: 8, B3: 15}
	f.unownedCoin(t, bits, 42000)

	page, hit, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, page.Coins, 1)
	assert.Equal(t, identifier.Encode(bits), page.Coins[0].ComputedIdentifier)
	assert.True(t, page.HasAvailableCombinations)

	again, hit, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, page, again)

	// Defaults normalize to the same key as an explicit default request.
	_, hit, err = f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{Page: 1, Limit: domain.DefaultCoinPageSize})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestBuyCoinInvalidatesCache(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	buyer := f.client(t, "bob")
	coinID := f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 3}, 30000)

	page, _, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	require.Nil(t, page.Coins[0].OwnerID)

	tx, err := f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: coinID, BuyerID: buyer})
	require.NoError(t, err)
	assert.EqualValues(t, 30000, tx.Amount)

	page, hit, err := f.market.ListCoins(ctx, domain.CoinFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, page.Coins[0].OwnerID)
	assert.Equal(t, buyer, *page.Coins[0].OwnerID)
	require.NotNil(t, page.Coins[0].OwnerName)
	assert.Equal(t, "bob", *page.Coins[0].OwnerName)
}

func TestBuyCoinErrors(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	buyer := f.client(t, "bob")
	coinID := f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 3}, 30000)

	tests := []struct {
		name string
		req  domain.BuyRequest
		want error
	}{
		{name: "missing coin", req: domain.BuyRequest{BuyerID: buyer}, want: domain.ErrValidation},
		{name: "missing buyer", req: domain.BuyRequest{CoinID: coinID}, want: domain.ErrValidation},
		{name: "unknown coin", req: domain.BuyRequest{CoinID: 404, BuyerID: buyer}, want: domain.ErrCoinNotFound},
		{name: "unknown buyer", req: domain.BuyRequest{CoinID: coinID, BuyerID: 404}, want: domain.ErrClientNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.market.BuyCoin(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: coinID, BuyerID: buyer})
	require.NoError(t, err)
	_, err = f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: coinID, BuyerID: buyer})
	assert.ErrorIs(t, err, domain.ErrAlreadyOwned)
}

func TestConcurrentBuyersExactlyOneWins(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	coinID := f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 3}, 30000)
	buyers := []int64{f.client(t, "alice"), f.client(t, "bob")}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, b int64) {
			defer wg.Done()
			_, errs[i] = f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: coinID, BuyerID: b})
		}(i, b)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrAlreadyOwned):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	page, _, err := f.market.ListTransactions(ctx, domain.TransactionFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalCount)
}

func TestListTransactionsFilterScenario(t *testing.T) {
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	f := newFixture(t, defaultOptions(), store.WithClock(now))
	ctx := context.Background()
	alice := f.client(t, "Alice")
	bob := f.client(t, "Bob")
	first := f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 3}, 500)
	second := f.unownedCoin(t, domain.Triple{B1: 1, B2: 2, B3: 4}, 5000)

	_, err := f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: first, BuyerID: bob})
	require.NoError(t, err)
	mu.Lock()
	clock = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mu.Unlock()
	_, err = f.market.BuyCoin(ctx, domain.BuyRequest{CoinID: second, BuyerID: alice})
	require.NoError(t, err)

	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	minValue := int64(1000)
	for _, filter := range []domain.TransactionFilter{
		{StartDate: &march},
		{MinValue: &minValue},
		{BuyerName: "ali"},
	} {
		t.Run(fmt.Sprintf("%v", filter.Values()), func(t *testing.T) {
			page, _, err := f.market.ListTransactions(ctx, filter, domain.PageRequest{})
			require.NoError(t, err)
			assert.EqualValues(t, 1, page.TotalCount)
			require.Len(t, page.Transactions, 1)
			row := page.Transactions[0]
			assert.Equal(t, second, row.CoinID)
			assert.Equal(t, "Alice", row.BuyerName)
			assert.Equal(t, identifier.Encode(domain.Triple{B1: 1, B2: 2, B3: 4}), row.ComputedIdentifier)
		})
	}
}

func TestClientProfile(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	issuer := f.client(t, "issuer")
	_, err := f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 12000})
	require.NoError(t, err)
	_, err = f.market.MintCoin(ctx, domain.MintRequest{IssuerID: issuer, Value: 13000})
	require.NoError(t, err)

	p, hit, err := f.market.ClientProfile(ctx, issuer)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 2, p.TotalCoins)
	assert.EqualValues(t, 25000, p.TotalValue)
	assert.Zero(t, p.TransactionsCount)

	_, hit, err = f.market.ClientProfile(ctx, issuer)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = f.market.ClientProfile(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = f.market.ClientProfile(ctx, 500)
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}
