package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

const dateOnly = "2006-01-02"

func parsePage(q url.Values) (domain.PageRequest, error) {
	page, err := optionalInt(q, "page")
	if err != nil {
		return domain.PageRequest{}, err
	}
	limit, err := optionalInt(q, "limit")
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.PageRequest{Page: page, Limit: limit}, nil
}

func parseTransactionFilter(q url.Values) (domain.TransactionFilter, error) {
	var f domain.TransactionFilter
	var err error

	if f.StartDate, err = optionalDate(q, "startDate", false); err != nil {
		return f, err
	}
	if f.EndDate, err = optionalDate(q, "endDate", true); err != nil {
		return f, err
	}
	if f.MinValue, err = optionalInt64(q, "minValue"); err != nil {
		return f, err
	}
	if f.MaxValue, err = optionalInt64(q, "maxValue"); err != nil {
		return f, err
	}
	f.BuyerName = strings.TrimSpace(q.Get("buyerName"))
	f.SellerName = strings.TrimSpace(q.Get("sellerName"))
	return f, nil
}

// optionalInt parses a non-negative integer; absent yields zero.
func optionalInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, name)
	}
	return n, nil
}

func optionalInt64(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return &n, nil
}

// optionalDate accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func optionalDate(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD or RFC 3339", domain.ErrValidation, name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation)
	}
	return id, nil
}
