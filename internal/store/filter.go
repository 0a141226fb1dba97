package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortKey selects the order of List results.
type SortKey string

const (
	// SortRecent orders by creation time, newest first. It is the default.
	SortRecent    SortKey = ""
	SortPriceAsc  SortKey = "price"
	SortPriceDesc SortKey = "-price"
	SortNameAsc   SortKey = "name"
	SortNameDesc  SortKey = "-name"
)

// ParseSortKey validates a sort key received from a caller.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.TrimSpace(s)); key {
	case SortRecent, SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return key, nil
	case "recent", "-createdAt":
		return SortRecent, nil
	default:
		return "", fmt.Errorf("unsupported sort key %q", s)
	}
}

// Filter narrows and orders List results. The zero value returns every product, newest first.
type Filter struct {
	Category string
	Query    string
	MinPrice *float64
	MaxPrice *float64
	Sort     SortKey
}

func (f Filter) match(p Product) bool {
	if f.Category != "" && !strings.EqualFold(strings.TrimSpace(f.Category), p.Category) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.Details), q)
	}
	return true
}

// sortProducts orders list in place. list must be in insertion order on entry,
// which is what makes "later insertion first" hold for equal creation times.
func sortProducts(list []Product, key SortKey) {
	switch key {
	case SortPriceAsc:
		slices.SortStableFunc(list, func(a, b Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(list, func(a, b Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortNameAsc:
		slices.SortStableFunc(list, func(a, b Product) int { return compareNames(a.Name, b.Name) })
	case SortNameDesc:
		slices.SortStableFunc(list, func(a, b Product) int { return compareNames(b.Name, a.Name) })
	default:
		slices.Reverse(list)
		slices.SortStableFunc(list, func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
}

func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
