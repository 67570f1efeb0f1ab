package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/coinmarket/internal/allocation"
	"github.com/punchamoorthee/coinmarket/internal/cache"
	"github.com/punchamoorthee/coinmarket/internal/domain"
	"github.com/punchamoorthee/coinmarket/internal/identifier"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinmarket_cache_lookups_total",
		Help: "Response cache lookups, labeled by endpoint and result",
	}, []string{"endpoint", "result"})

	mintConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinmarket_mint_conflicts_total",
		Help: "Mint attempts that lost a bit-triple race and were retried",
	})
)

const (
	coinsEndpoint        = "coins"
	transactionsEndpoint = "transactions"
	profileEndpoint      = "profile"
)

//go:generate mockgen -destination=mocks/ledger.go -package=mocks github.com/punchamoorthee/coinmarket/internal/service Ledger

// Ledger is the storage surface the marketplace needs.
type Ledger interface {
	ListUsedTriples(ctx context.Context) (map[domain.Triple]struct{}, error)
	ListCoins(ctx context.Context, f domain.CoinFilter, page domain.PageRequest) ([]domain.CoinRow, int64, error)
	ListTransactions(ctx context.Context, f domain.TransactionFilter, page domain.PageRequest) ([]domain.TransactionRow, int64, error)
	InsertCoin(ctx context.Context, bits domain.Triple, value int64, owner *int64) (*domain.Coin, error)
	TransferCoin(ctx context.Context, coinID, buyerID int64) (*domain.Transaction, error)
	ClientProfile(ctx context.Context, clientID int64) (*domain.ClientProfile, error)
}

// ResponseCache memoizes read results. Set must refuse values computed in
// an older generation than the current one.
type ResponseCache interface {
	Generation() uint64
	Get(key string) (interface{}, bool)
	Set(gen uint64, key string, value interface{}) bool
	Clear()
}

// Options bound the marketplace's behaviour.
type Options struct {
	MaxBit       int
	MinValue     int64
	MaxValue     int64
	Timeout      time.Duration
	MintAttempts int
}

// Marketplace implements the coin listing, purchase and minting operations.
type Marketplace struct {
	ledger Ledger
	cache  ResponseCache
	opts   Options
	log    *slog.Logger
}

func NewMarketplace(ledger Ledger, c ResponseCache, opts Options, logger *slog.Logger) *Marketplace {
	if opts.MintAttempts < 1 {
		opts.MintAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Marketplace{ledger: ledger, cache: c, opts: opts, log: logger}
}

// ListCoins returns a page of coins. The boolean reports a cache hit.
func (m *Marketplace) ListCoins(ctx context.Context, f domain.CoinFilter, page domain.PageRequest) (*domain.CoinPage, bool, error) {
	page = page.Normalize(domain.DefaultCoinPageSize)
	key := cache.Key(coinsEndpoint, pageValues(url.Values{}, page))
	if v, ok := m.lookup(coinsEndpoint, key); ok {
		return v.(*domain.CoinPage), true, nil
	}

	gen := m.cache.Generation()
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rows, total, err := m.ledger.ListCoins(ctx, f, page)
	if err != nil {
		return nil, false, m.fault("list coins", err)
	}
	for i := range rows {
		rows[i].ComputedIdentifier = identifier.Encode(rows[i].Bits())
	}

	result := &domain.CoinPage{
		Coins:                    rows,
		TotalCount:               total,
		HasAvailableCombinations: total < allocation.Capacity(m.opts.MaxBit),
	}
	m.cache.Set(gen, key, result)
	return result, false, nil
}

// ListTransactions returns a page of ledger entries matching f, most recent
// first. The boolean reports a cache hit.
func (m *Marketplace) ListTransactions(ctx context.Context, f domain.TransactionFilter, page domain.PageRequest) (*domain.TransactionPage, bool, error) {
	page = page.Normalize(domain.DefaultTransactionPageSize)
	key := cache.Key(transactionsEndpoint, pageValues(f.Values(), page))
	if v, ok := m.lookup(transactionsEndpoint, key); ok {
		return v.(*domain.TransactionPage), true, nil
	}

	gen := m.cache.Generation()
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rows, total, err := m.ledger.ListTransactions(ctx, f, page)
	if err != nil {
		return nil, false, m.fault("list transactions", err)
	}
	for i := range rows {
		rows[i].ComputedIdentifier = identifier.Encode(rows[i].Bits())
	}

	result := &domain.TransactionPage{Transactions: rows, TotalCount: total}
	m.cache.Set(gen, key, result)
	return result, false, nil
}

// ClientProfile returns a client's summary. The boolean reports a cache hit.
func (m *Marketplace) ClientProfile(ctx context.Context, clientID int64) (*domain.ClientProfile, bool, error) {
	if clientID <= 0 {
		return nil, false, fmt.Errorf("%w: client id must be positive", domain.ErrValidation)
	}
	key := cache.Key(profileEndpoint, url.Values{"id": {strconv.FormatInt(clientID, 10)}})
	if v, ok := m.lookup(profileEndpoint, key); ok {
		return v.(*domain.ClientProfile), true, nil
	}

	gen := m.cache.Generation()
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	p, err := m.ledger.ClientProfile(ctx, clientID)
	if err != nil {
		return nil, false, m.fault("client profile", err)
	}
	m.cache.Set(gen, key, p)
	return p, false, nil
}

// BuyCoin transfers an unowned coin to the buyer and records the sale.
func (m *Marketplace) BuyCoin(ctx context.Context, req domain.BuyRequest) (*domain.Transaction, error) {
	if req.CoinID <= 0 || req.BuyerID <= 0 {
		return nil, fmt.Errorf("%w: coinId and buyerId are required", domain.ErrValidation)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	tx, err := m.ledger.TransferCoin(ctx, req.CoinID, req.BuyerID)
	if err != nil {
		return nil, m.fault("buy coin", err)
	}
	m.cache.Clear()
	m.log.Info("coin purchased", slog.Int64("coin_id", tx.CoinID), slog.Int64("buyer_id", tx.BuyerID), slog.Int64("amount", tx.Amount))
	return tx, nil
}

// MintCoin allocates the first unused bit-triple and issues a coin of the
// requested value to the issuer. Losing an allocation race to a concurrent
// mint re-runs the search, up to MintAttempts times in total.
func (m *Marketplace) MintCoin(ctx context.Context, req domain.MintRequest) (*domain.Coin, error) {
	if req.IssuerID <= 0 {
		return nil, fmt.Errorf("%w: issuerId is required", domain.ErrValidation)
	}
	if req.Value < m.opts.MinValue || req.Value > m.opts.MaxValue {
		return nil, fmt.Errorf("%w: value must be between %d and %d", domain.ErrValidation, m.opts.MinValue, m.opts.MaxValue)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	issuer := req.IssuerID
	for attempt := 1; attempt <= m.opts.MintAttempts; attempt++ {
		used, err := m.ledger.ListUsedTriples(ctx)
		if err != nil {
			return nil, m.fault("mint coin", err)
		}
		bits, err := allocation.Next(used, m.opts.MaxBit)
		if errors.Is(err, allocation.ErrNoCapacity) {
			return nil, domain.ErrCapacityExhausted
		}
		if err != nil {
			return nil, m.fault("mint coin", err)
		}

		coin, err := m.ledger.InsertCoin(ctx, bits, req.Value, &issuer)
		if errors.Is(err, domain.ErrTripleTaken) {
			mintConflicts.Inc()
			m.log.Debug("bit triple taken concurrently, retrying", slog.String("bits", bits.String()), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, m.fault("mint coin", err)
		}

		m.cache.Clear()
		m.log.Info("coin minted", slog.Int64("coin_id", coin.ID), slog.String("bits", bits.String()), slog.Int64("value", coin.Value))
		return coin, nil
	}
	return nil, fmt.Errorf("%w: lost %d allocation races", domain.ErrCapacityExhausted, m.opts.MintAttempts)
}

func (m *Marketplace) lookup(endpoint, key string) (interface{}, bool) {
	v, ok := m.cache.Get(key)
	if ok {
		cacheLookups.WithLabelValues(endpoint, "hit").Inc()
		return v, true
	}
	cacheLookups.WithLabelValues(endpoint, "miss").Inc()
	return nil, false
}

func (m *Marketplace) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.Timeout)
}

// fault passes domain errors through and wraps everything else.
func (m *Marketplace) fault(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrCoinNotFound),
		errors.Is(err, domain.ErrClientNotFound),
		errors.Is(err, domain.ErrAlreadyOwned),
		errors.Is(err, domain.ErrCapacityExhausted):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		m.log.Warn("storage call timed out", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	}
	m.log.Error("storage call failed", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("%s: %w", op, err)
}

func pageValues(v url.Values, page domain.PageRequest) url.Values {
	v.Set("page", strconv.Itoa(page.Page))
	v.Set("limit", strconv.Itoa(page.Limit))
	return v
}
