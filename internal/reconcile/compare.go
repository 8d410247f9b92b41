// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import "sort"

// newerYear reports whether a sorts before b by year descending, absent
// years last.
func newerYear(a, b *int) bool {
	if a == nil {
		return false
	}
	return b == nil || *a > *b
}

func sameYear(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// largerAmount reports whether a sorts before b by amount descending, absent
// amounts last.
func largerAmount(a, b *float64) bool {
	if a == nil {
		return false
	}
	return b == nil || *a > *b
}

func sameAmount(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
