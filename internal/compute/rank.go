// Package compute holds the small relational layer the gold pipeline needs:
// grouped sums and deterministic ranking.
package compute

import (
	"cmp"
	"slices"
)

// Row is one ranked group.
type Row[K comparable] struct {
	Key   K
	Value int64
	Rank  int64
}

// AtLeast drops groups whose value is below floor.
func AtLeast[K comparable](m map[K]int64, floor int64) map[K]int64 {
	o := make(map[K]int64, len(m))
	for k, v := range m {
		if v >= floor {
			o[k] = v
		}
	}
	return o
}

// Rank orders m by value descending, breaking ties with cmpKey, and assigns
// 1 based ranks. Only the first n rows are kept, n <= 0 keeps everything.
func Rank[K comparable](m map[K]int64, cmpKey func(a, b K) int, n int) []Row[K] {
	o := make([]Row[K], 0, len(m))
	for k, v := range m {
		o = append(o, Row[K]{Key: k, Value: v})
	}
	slices.SortFunc(o, func(a, b Row[K]) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmpKey(a.Key, b.Key))
	})
	if n > 0 && len(o) > n {
		o = o[:n]
	}
	for i := range o {
		o[i].Rank = int64(i + 1)
	}
	return o
}

// RankBy ranks m separately within each group, keeping n rows per group.
// Groups are returned in cmpGroup order, rows within a group in rank order.
func RankBy[K comparable, G comparable](
	m map[K]int64,
	group func(K) G,
	cmpGroup func(a, b G) int,
	cmpKey func(a, b K) int,
	n int,
) []Row[K] {
	parts := make(map[G]map[K]int64)
	for k, v := range m {
		g := group(k)
		p, ok := parts[g]
		if !ok {
			p = make(map[K]int64)
			parts[g] = p
		}
		p[k] = v
	}
	groups := make([]G, 0, len(parts))
	for g := range parts {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, cmpGroup)
	o := make([]Row[K], 0, len(m))
	for _, g := range groups {
		o = append(o, Rank(parts[g], cmpKey, n)...)
	}
	return o
}

// Sorted returns the keys of m in cmpKey order.
func Sorted[K comparable, V any](m map[K]V, cmpKey func(a, b K) int) []K {
	o := make([]K, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	slices.SortFunc(o, cmpKey)
	return o
}
