// Package fefo orders stock for first-expiry-first-out dispensing.
package fefo

import (
	"slices"
	"strings"
	"time"

	"pharmabill/backend/internal/domain"
)

// DefaultExpiryWindow is how close to expiry a product must be before it is
// flagged in the billing panel.
const DefaultExpiryWindow = 3

var dayLayouts = []string{"2006-01-02", time.RFC3339}

var monthLayouts = []string{"2006-01", "01/2006", "01-2006"}

// ParseExpiry reads an expiry label as a calendar date in UTC. Month-only
// labels expire on the last day of that month.
func ParseExpiry(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Rank returns a copy of products sorted by ascending expiry. Products whose
// expiry cannot be parsed go last. Equal expiries keep their input order, so
// search relevance survives as the tie-break.
func Rank(products []domain.Product) []domain.Product {
	type keyed struct {
		product domain.Product
		expiry  time.Time
		ok      bool
	}

	items := make([]keyed, len(products))
	for i, p := range products {
		expiry, ok := ParseExpiry(p.Expiry)
		items[i] = keyed{product: p, expiry: expiry, ok: ok}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return a.expiry.Compare(b.expiry)
	})

	ranked := make([]domain.Product, len(items))
	for i, item := range items {
		ranked[i] = item.product
	}
	return ranked
}

// RankTop ranks the full candidate set and only then truncates to limit.
// A limit below one keeps everything.
func RankTop(products []domain.Product, limit int) []domain.Product {
	ranked := Rank(products)
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}

// ExpiryStatus classifies a product relative to now. Products expiring within
// windowMonths are "expiring".
func ExpiryStatus(p domain.Product, now time.Time, windowMonths int) string {
	expiry, ok := ParseExpiry(p.Expiry)
	if !ok {
		return domain.ExpiryStatusUnknown
	}
	if windowMonths < 0 {
		windowMonths = DefaultExpiryWindow
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if expiry.Before(today) {
		return domain.ExpiryStatusExpired
	}
	if expiry.Before(today.AddDate(0, windowMonths, 0)) {
		return domain.ExpiryStatusExpiring
	}
	return domain.ExpiryStatusOK
}
