// Package search matches catalog and customer records against cashier queries.
package search

import (
	"slices"
	"strings"

	"pharmabill/backend/internal/domain"
)

type Mode string

const (
	// ModeFast matches when every query token appears somewhere in a field.
	ModeFast Mode = "fast"
	// ModeExact matches when a field starts with the whole query.
	ModeExact Mode = "exact"
)

// ParseMode accepts "fast", "exact" and the older "accurate" label.
// Anything else falls back to fast.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "exact", "accurate", "strict":
		return ModeExact
	default:
		return ModeFast
	}
}

// Ranker narrows products down to those matching query, best match first.
type Ranker interface {
	Rank(products []domain.Product, query string) []domain.Product
}

// Matcher is the default Ranker. It is safe for concurrent use.
type Matcher struct {
	mode Mode
}

func NewMatcher(mode Mode) Matcher {
	if mode != ModeExact {
		mode = ModeFast
	}
	return Matcher{mode: mode}
}

func (m Matcher) Mode() Mode {
	if m.mode == "" {
		return ModeFast
	}
	return m.mode
}

// Rank returns the products matching query on name or batch. An empty query
// matches nothing; callers list the catalog directly in that case.
func (m Matcher) Rank(products []domain.Product, query string) []domain.Product {
	return rankBy(m.Mode(), products, query, func(p domain.Product) []string {
		return []string{p.Name, p.Batch}
	})
}

// RankCustomers matches customers on name, GSTIN or mobile.
func (m Matcher) RankCustomers(customers []domain.Customer, query string) []domain.Customer {
	return rankBy(m.Mode(), customers, query, func(c domain.Customer) []string {
		return []string{c.Name, c.GSTIN, c.Mobile}
	})
}

type hit[T any] struct {
	item  T
	score int
	pos   int
}

func rankBy[T any](mode Mode, items []T, query string, fields func(T) []string) []T {
	query = normalize(query)
	if query == "" {
		return []T{}
	}

	hits := make([]hit[T], 0, len(items))
	for i, item := range items {
		best := 0
		for _, field := range fields(item) {
			if s := score(mode, query, normalize(field)); s > best {
				best = s
			}
		}
		if best > 0 {
			hits = append(hits, hit[T]{item: item, score: best, pos: i})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit[T]) int {
		return b.score - a.score
	})

	out := make([]T, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.item)
	}
	return out
}

// Scores, higher is stronger.
const (
	scoreEqual       = 100
	scorePrefix      = 80
	scoreWordPrefix  = 60
	scoreAllTokens   = 40
	scoreSubsequence = 10
)

func score(mode Mode, query string, field string) int {
	if field == "" {
		return 0
	}
	if field == query {
		return scoreEqual
	}
	if strings.HasPrefix(field, query) {
		return scorePrefix
	}
	if mode == ModeExact {
		return 0
	}

	tokens := strings.Fields(query)
	words := strings.Fields(field)
	allPrefixWords := true
	allContained := true
	for _, token := range tokens {
		if !strings.Contains(field, token) {
			allContained = false
			allPrefixWords = false
			break
		}
		if !slices.ContainsFunc(words, func(w string) bool { return strings.HasPrefix(w, token) }) {
			allPrefixWords = false
		}
	}
	switch {
	case allPrefixWords:
		return scoreWordPrefix
	case allContained:
		return scoreAllTokens
	}

	// Tolerate dropped letters such as "dlo" for "dolo".
	if len(tokens) == 1 && len(query) >= 3 && isSubsequence(query, field) {
		return scoreSubsequence
	}
	return 0
}

func isSubsequence(needle string, haystack string) bool {
	i := 0
	for j := 0; j < len(haystack) && i < len(needle); j++ {
		if haystack[j] == needle[i] {
			i++
		}
	}
	return i == len(needle)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
