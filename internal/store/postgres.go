package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

const (
	pgUniqueViolation = "23505"
	// LOWER follows the database's Unicode case mapping.
	pgLower = "LOWER"
)

// PostgresStore is the Postgres-backed ledger.
type PostgresStore struct {
	Db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	o := buildOptions(opts)
	return &PostgresStore{Db: pool, now: o.now}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema, err := migrations.ReadFile("migrations/postgres.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.Db.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateClient registers a client. Credentials are managed elsewhere.
func (s *PostgresStore) CreateClient(ctx context.Context, c domain.Client) (int64, error) {
	var id int64
	err := s.Db.QueryRow(ctx, rebind(insertClientQuery), c.Name, c.Email, c.Phone, c.Address).Scan(&id)
	if isPgUniqueViolation(err) {
		return 0, fmt.Errorf("%w: email %q already registered", domain.ErrValidation, c.Email)
	}
	if err != nil {
		return 0, fmt.Errorf("client insert failed: %w", err)
	}
	return id, nil
}

// ListUsedTriples returns every triple held by a coin.
func (s *PostgresStore) ListUsedTriples(ctx context.Context) (map[domain.Triple]struct{}, error) {
	rows, err := s.Db.Query(ctx, usedTriplesQuery)
	if err != nil {
		return nil, fmt.Errorf("used triples query failed: %w", err)
	}
	defer rows.Close()

	used := make(map[domain.Triple]struct{})
	for rows.Next() {
		var t domain.Triple
		if err := rows.Scan(&t.B1, &t.B2, &t.B3); err != nil {
			return nil, fmt.Errorf("used triples scan failed: %w", err)
		}
		used[t] = struct{}{}
	}
	return used, rows.Err()
}

// ListCoins returns one page of coins ordered by id, and the total count.
// Both reads see the same snapshot.
func (s *PostgresStore) ListCoins(ctx context.Context, _ domain.CoinFilter, page domain.PageRequest) ([]domain.CoinRow, int64, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, rebind(listCoinsQuery), page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("coin list query failed: %w", err)
	}
	coins := []domain.CoinRow{}
	for rows.Next() {
		var c domain.CoinRow
		if err := rows.Scan(&c.ID, &c.Bit1, &c.Bit2, &c.Bit3, &c.Value, &c.OwnerID, &c.OwnerName); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("coin scan failed: %w", err)
		}
		coins = append(coins, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("coin list query failed: %w", err)
	}

	var total int64
	if err := tx.QueryRow(ctx, countCoinsQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("coin count failed: %w", err)
	}
	return coins, total, tx.Commit(ctx)
}

// ListTransactions returns one page of matching transactions, most recent
// first, and the number of matching rows.
func (s *PostgresStore) ListTransactions(ctx context.Context, f domain.TransactionFilter, page domain.PageRequest) ([]domain.TransactionRow, int64, error) {
	where, args := whereClause(TransactionPredicates(f, pgLower), func(a interface{}) interface{} { return a })

	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	pageArgs := append(append([]interface{}{}, args...), page.Limit, page.Offset())
	rows, err := tx.Query(ctx, rebind(transactionColumns+transactionsFrom+where+transactionOrder), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction list query failed: %w", err)
	}
	txs := []domain.TransactionRow{}
	for rows.Next() {
		var r domain.TransactionRow
		err := rows.Scan(&r.ID, &r.CoinID, &r.Amount, &r.TransactionDate,
			&r.SellerID, &r.SellerName, &r.BuyerID, &r.BuyerName,
			&r.Bit1, &r.Bit2, &r.Bit3, &r.Value)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("transaction scan failed: %w", err)
		}
		r.TransactionDate = r.TransactionDate.UTC()
		txs = append(txs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("transaction list query failed: %w", err)
	}

	var total int64
	if err := tx.QueryRow(ctx, rebind("SELECT COUNT(*) "+transactionsFrom+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("transaction count failed: %w", err)
	}
	return txs, total, tx.Commit(ctx)
}

// InsertCoin mints a coin. A triple already held by another coin yields
// domain.ErrTripleTaken.
func (s *PostgresStore) InsertCoin(ctx context.Context, bits domain.Triple, value int64, owner *int64) (*domain.Coin, error) {
	if !validTriple(bits) {
		return nil, fmt.Errorf("%w: bits %s are not strictly increasing", domain.ErrValidation, bits)
	}

	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if owner != nil {
		var exists bool
		if err := tx.QueryRow(ctx, rebind(clientExistsQuery), *owner).Scan(&exists); err != nil {
			return nil, fmt.Errorf("owner lookup failed: %w", err)
		}
		if !exists {
			return nil, domain.ErrClientNotFound
		}
	}

	var id int64
	err = tx.QueryRow(ctx, rebind(insertCoinQuery), bits.B1, bits.B2, bits.B3, value, owner).Scan(&id)
	if isPgUniqueViolation(err) {
		return nil, domain.ErrTripleTaken
	}
	if err != nil {
		return nil, fmt.Errorf("coin insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrTripleTaken
		}
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &domain.Coin{ID: id, Bits: bits, Value: value, OwnerID: owner}, nil
}

// TransferCoin hands an unowned coin to buyerID and records the sale in one
// transaction. The conditional UPDATE is the only arbitration point between
// concurrent buyers: the loser sees zero affected rows.
func (s *PostgresStore) TransferCoin(ctx context.Context, coinID, buyerID int64) (*domain.Transaction, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var buyerExists bool
	if err := tx.QueryRow(ctx, rebind(clientExistsQuery), buyerID).Scan(&buyerExists); err != nil {
		return nil, fmt.Errorf("buyer lookup failed: %w", err)
	}
	if !buyerExists {
		return nil, domain.ErrClientNotFound
	}

	var value int64
	err = tx.QueryRow(ctx, rebind(claimCoinQuery), buyerID, coinID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		var coinExists bool
		if err := tx.QueryRow(ctx, rebind(coinExistsQuery), coinID).Scan(&coinExists); err != nil {
			return nil, fmt.Errorf("coin lookup failed: %w", err)
		}
		if !coinExists {
			return nil, domain.ErrCoinNotFound
		}
		return nil, domain.ErrAlreadyOwned
	}
	if err != nil {
		return nil, fmt.Errorf("ownership update failed: %w", err)
	}

	now := s.now().UTC()
	var id int64
	err = tx.QueryRow(ctx, rebind(insertTransactionQuery), coinID, value, now, buyerID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("transaction insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	return &domain.Transaction{
		ID:         id,
		CoinID:     coinID,
		Amount:     value,
		OccurredAt: now,
		BuyerID:    buyerID,
	}, nil
}

// ClientProfile summarises a client's holdings and ledger activity.
func (s *PostgresStore) ClientProfile(ctx context.Context, clientID int64) (*domain.ClientProfile, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var p domain.ClientProfile
	err = tx.QueryRow(ctx, rebind(profileQuery), clientID).Scan(&p.Name, &p.Email, &p.Phone, &p.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile query failed: %w", err)
	}
	if err := tx.QueryRow(ctx, rebind(profileTxCountQuery), clientID, clientID).Scan(&p.TransactionsCount); err != nil {
		return nil, fmt.Errorf("profile transaction count failed: %w", err)
	}
	if err := tx.QueryRow(ctx, rebind(profileHoldingsQuery), clientID).Scan(&p.TotalCoins, &p.TotalValue); err != nil {
		return nil, fmt.Errorf("profile holdings query failed: %w", err)
	}
	return &p, tx.Commit(ctx)
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
