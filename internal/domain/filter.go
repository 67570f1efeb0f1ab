package domain

import (
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultPage                 = 1
	DefaultCoinPageSize         = 30
	DefaultTransactionPageSize  = 15
	MaxPageSize                 = 100
	transactionDateQueryEncoder = time.RFC3339Nano
)

// PageRequest is a 1-based page of at most Limit rows.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize fills defaults and caps the page size.
func (p PageRequest) Normalize(defaultLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of rows preceding the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	pages := total / l
	if total%l != 0 {
		pages++
	}
	return int(pages)
}

// CoinFilter narrows coin listings. It carries no fields today; listings are
// only paginated.
type CoinFilter struct{}

// TransactionFilter narrows transaction listings. Nil fields are unset;
// set fields are ANDed.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	MinValue   *int64
	MaxValue   *int64
	BuyerName  string
	SellerName string
}

// Values is the canonical encoding of the set fields, used for cache keys.
func (f TransactionFilter) Values() url.Values {
	v := url.Values{}
	if f.StartDate != nil {
		v.Set("startDate", f.StartDate.UTC().Format(transactionDateQueryEncoder))
	}
	if f.EndDate != nil {
		v.Set("endDate", f.EndDate.UTC().Format(transactionDateQueryEncoder))
	}
	if f.MinValue != nil {
		v.Set("minValue", strconv.FormatInt(*f.MinValue, 10))
	}
	if f.MaxValue != nil {
		v.Set("maxValue", strconv.FormatInt(*f.MaxValue, 10))
	}
	if f.BuyerName != "" {
		v.Set("buyerName", f.BuyerName)
	}
	if f.SellerName != "" {
		v.Set("sellerName", f.SellerName)
	}
	return v
}
