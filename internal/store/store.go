// Package store is the ledger's storage adapter: the only code that talks to
// the relational database. Two backends share the same query text and
// semantics: Postgres through pgx and an embedded SQLite through
// database/sql.
package store

import (
	"embed"
	"strconv"
	"strings"
	"time"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

type options struct {
	now func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithClock overrides the clock used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const (
	listCoinsQuery = `SELECT c.coin_id, c.bit1, c.bit2, c.bit3, c.value, c.client_id, cl.name
		FROM coins c
		LEFT JOIN clients cl ON c.client_id = cl.id
		ORDER BY c.coin_id ASC
		LIMIT ? OFFSET ?`

	countCoinsQuery = `SELECT COUNT(*) FROM coins`

	usedTriplesQuery = `SELECT bit1, bit2, bit3 FROM coins`

	transactionsFrom = `FROM transactions t
		LEFT JOIN clients seller ON t.seller_id = seller.id
		JOIN clients buyer ON t.buyer_id = buyer.id
		JOIN coins c ON t.coin_id = c.coin_id`

	transactionColumns = `SELECT t.id, t.coin_id, t.amount, t.transaction_date,
		t.seller_id, seller.name, t.buyer_id, buyer.name,
		c.bit1, c.bit2, c.bit3, c.value `

	transactionOrder = ` ORDER BY t.transaction_date DESC, t.id DESC LIMIT ? OFFSET ?`

	insertCoinQuery = `INSERT INTO coins (bit1, bit2, bit3, value, client_id)
		VALUES (?, ?, ?, ?, ?) RETURNING coin_id`

	claimCoinQuery = `UPDATE coins SET client_id = ?
		WHERE coin_id = ? AND client_id IS NULL
		RETURNING value`

	insertTransactionQuery = `INSERT INTO transactions (coin_id, amount, transaction_date, seller_id, buyer_id)
		VALUES (?, ?, ?, NULL, ?) RETURNING id`

	insertClientQuery = `INSERT INTO clients (name, email, phone, address)
		VALUES (?, ?, ?, ?) RETURNING id`

	clientExistsQuery = `SELECT EXISTS(SELECT 1 FROM clients WHERE id = ?)`
	coinExistsQuery   = `SELECT EXISTS(SELECT 1 FROM coins WHERE coin_id = ?)`

	profileQuery         = `SELECT name, email, phone, address FROM clients WHERE id = ?`
	profileTxCountQuery  = `SELECT COUNT(*) FROM transactions WHERE buyer_id = ? OR seller_id = ?`
	profileHoldingsQuery = `SELECT COUNT(*), CAST(COALESCE(SUM(value), 0) AS BIGINT) FROM coins WHERE client_id = ?`
)

// Predicate is one condition of a WHERE clause. Expr holds exactly one
// '?' placeholder bound to Arg.
type Predicate struct {
	Expr string
	Arg  interface{}
}

// TransactionPredicates translates a filter into ANDed predicates. Each set
// field contributes exactly one predicate. lower names the backend's
// Unicode-aware lowercasing function; it is applied to both sides of a name
// match.
func TransactionPredicates(f domain.TransactionFilter, lower string) []Predicate {
	var preds []Predicate
	if f.StartDate != nil {
		preds = append(preds, Predicate{Expr: "t.transaction_date >= ?", Arg: f.StartDate.UTC()})
	}
	if f.EndDate != nil {
		preds = append(preds, Predicate{Expr: "t.transaction_date <= ?", Arg: f.EndDate.UTC()})
	}
	if f.MinValue != nil {
		preds = append(preds, Predicate{Expr: "c.value >= ?", Arg: *f.MinValue})
	}
	if f.MaxValue != nil {
		preds = append(preds, Predicate{Expr: "c.value <= ?", Arg: *f.MaxValue})
	}
	if f.BuyerName != "" {
		preds = append(preds, Predicate{Expr: nameMatch(lower, "buyer.name"), Arg: containsPattern(f.BuyerName)})
	}
	if f.SellerName != "" {
		preds = append(preds, Predicate{Expr: nameMatch(lower, "seller.name"), Arg: containsPattern(f.SellerName)})
	}
	return preds
}

// whereClause renders predicates; bind converts each argument for the
// backend.
func whereClause(preds []Predicate, bind func(interface{}) interface{}) (string, []interface{}) {
	if len(preds) == 0 {
		return "", nil
	}
	exprs := make([]string, 0, len(preds))
	args := make([]interface{}, 0, len(preds))
	for _, p := range preds {
		exprs = append(exprs, p.Expr)
		args = append(args, bind(p.Arg))
	}
	return " WHERE " + strings.Join(exprs, " AND "), args
}

func nameMatch(lower, column string) string {
	return lower + "(" + column + ") LIKE " + lower + "(CAST(? AS TEXT)) ESCAPE '\\'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern escapes s for LIKE. Case folding happens in SQL so the
// pattern and the column fold the same way.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// rebind rewrites '?' placeholders as $1, $2, ... for Postgres. Queries in
// this package never contain '?' inside string literals.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func validTriple(t domain.Triple) bool {
	return t.B1 >= 1 && t.B1 < t.B2 && t.B2 < t.B3
}
