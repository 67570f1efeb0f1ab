package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

// sqliteLower is registered on the driver because SQLite's built-in LOWER
// only folds ASCII.
const sqliteLower = "unicode_lower"

func init() {
	msqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1, unicodeLower)
}

func unicodeLower(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// SQLiteStore is the embedded ledger. It holds a single connection, so
// writes are serialized by the pool; ":memory:" gives a throwaway database.
type SQLiteStore struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens the database at path and verifies the connection.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	o := buildOptions(opts)
	return &SQLiteStore{sqlDB: sqlDB, now: o.now}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema, err := migrations.ReadFile("migrations/sqlite.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateClient registers a client. Credentials are managed elsewhere.
func (s *SQLiteStore) CreateClient(ctx context.Context, c domain.Client) (int64, error) {
	var id int64
	err := s.sqlDB.QueryRowContext(ctx, insertClientQuery, c.Name, c.Email, c.Phone, c.Address).Scan(&id)
	if isSQLiteUniqueViolation(err) {
		return 0, fmt.Errorf("%w: email %q already registered", domain.ErrValidation, c.Email)
	}
	if err != nil {
		return 0, fmt.Errorf("client insert failed: %w", err)
	}
	return id, nil
}

// ListUsedTriples returns every triple held by a coin.
func (s *SQLiteStore) ListUsedTriples(ctx context.Context) (map[domain.Triple]struct{}, error) {
	rows, err := s.sqlDB.QueryContext(ctx, usedTriplesQuery)
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
func (s *SQLiteStore) ListCoins(ctx context.Context, _ domain.CoinFilter, page domain.PageRequest) ([]domain.CoinRow, int64, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, listCoinsQuery, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("coin list query failed: %w", err)
	}
	coins := []domain.CoinRow{}
	for rows.Next() {
		var (
			c         domain.CoinRow
			ownerID   sql.NullInt64
			ownerName sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Bit1, &c.Bit2, &c.Bit3, &c.Value, &ownerID, &ownerName); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("coin scan failed: %w", err)
		}
		c.OwnerID = nullableInt(ownerID)
		c.OwnerName = nullableString(ownerName)
		coins = append(coins, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("coin list query failed: %w", err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx, countCoinsQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("coin count failed: %w", err)
	}
	return coins, total, tx.Commit()
}

// ListTransactions returns one page of matching transactions, most recent
// first, and the number of matching rows.
func (s *SQLiteStore) ListTransactions(ctx context.Context, f domain.TransactionFilter, page domain.PageRequest) ([]domain.TransactionRow, int64, error) {
	where, args := whereClause(TransactionPredicates(f, sqliteLower), bindSQLite)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	pageArgs := append(append([]interface{}{}, args...), page.Limit, page.Offset())
	rows, err := tx.QueryContext(ctx, transactionColumns+transactionsFrom+where+transactionOrder, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction list query failed: %w", err)
	}
	txs := []domain.TransactionRow{}
	for rows.Next() {
		var (
			r          domain.TransactionRow
			occurredAt int64
			sellerID   sql.NullInt64
			sellerName sql.NullString
		)
		err := rows.Scan(&r.ID, &r.CoinID, &r.Amount, &occurredAt,
			&sellerID, &sellerName, &r.BuyerID, &r.BuyerName,
			&r.Bit1, &r.Bit2, &r.Bit3, &r.Value)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("transaction scan failed: %w", err)
		}
		r.TransactionDate = fromMillis(occurredAt)
		r.SellerID = nullableInt(sellerID)
		r.SellerName = nullableString(sellerName)
		txs = append(txs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("transaction list query failed: %w", err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) "+transactionsFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("transaction count failed: %w", err)
	}
	return txs, total, tx.Commit()
}

// InsertCoin mints a coin. A triple already held by another coin yields
// domain.ErrTripleTaken.
func (s *SQLiteStore) InsertCoin(ctx context.Context, bits domain.Triple, value int64, owner *int64) (*domain.Coin, error) {
	if !validTriple(bits) {
		return nil, fmt.Errorf("%w: bits %s are not strictly increasing", domain.ErrValidation, bits)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	if owner != nil {
		var exists bool
		if err := tx.QueryRowContext(ctx, clientExistsQuery, *owner).Scan(&exists); err != nil {
			return nil, fmt.Errorf("owner lookup failed: %w", err)
		}
		if !exists {
			return nil, domain.ErrClientNotFound
		}
	}

	var id int64
	err = tx.QueryRowContext(ctx, insertCoinQuery, bits.B1, bits.B2, bits.B3, value, nullArg(owner)).Scan(&id)
	if isSQLiteUniqueViolation(err) {
		return nil, domain.ErrTripleTaken
	}
	if err != nil {
		return nil, fmt.Errorf("coin insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &domain.Coin{ID: id, Bits: bits, Value: value, OwnerID: owner}, nil
}

// TransferCoin hands an unowned coin to buyerID and records the sale in one
// transaction.
func (s *SQLiteStore) TransferCoin(ctx context.Context, coinID, buyerID int64) (*domain.Transaction, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	var buyerExists bool
	if err := tx.QueryRowContext(ctx, clientExistsQuery, buyerID).Scan(&buyerExists); err != nil {
		return nil, fmt.Errorf("buyer lookup failed: %w", err)
	}
	if !buyerExists {
		return nil, domain.ErrClientNotFound
	}

	var value int64
	err = tx.QueryRowContext(ctx, claimCoinQuery, buyerID, coinID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		var coinExists bool
		if err := tx.QueryRowContext(ctx, coinExistsQuery, coinID).Scan(&coinExists); err != nil {
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
	err = tx.QueryRowContext(ctx, insertTransactionQuery, coinID, value, toMillis(now), buyerID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("transaction insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	return &domain.Transaction{
		ID:         id,
		CoinID:     coinID,
		Amount:     value,
		OccurredAt: fromMillis(toMillis(now)),
		BuyerID:    buyerID,
	}, nil
}

// ClientProfile summarises a client's holdings and ledger activity.
func (s *SQLiteStore) ClientProfile(ctx context.Context, clientID int64) (*domain.ClientProfile, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	var p domain.ClientProfile
	err = tx.QueryRowContext(ctx, profileQuery, clientID).Scan(&p.Name, &p.Email, &p.Phone, &p.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile query failed: %w", err)
	}
	if err := tx.QueryRowContext(ctx, profileTxCountQuery, clientID, clientID).Scan(&p.TransactionsCount); err != nil {
		return nil, fmt.Errorf("profile transaction count failed: %w", err)
	}
	if err := tx.QueryRowContext(ctx, profileHoldingsQuery, clientID).Scan(&p.TotalCoins, &p.TotalValue); err != nil {
		return nil, fmt.Errorf("profile holdings query failed: %w", err)
	}
	return &p, tx.Commit()
}

func bindSQLite(arg interface{}) interface{} {
	if t, ok := arg.(time.Time); ok {
		return toMillis(t)
	}
	return arg
}

func nullArg(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
