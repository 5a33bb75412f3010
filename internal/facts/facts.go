// Package facts defines the gold fact tables and computes them from one
// partition of transitions.
package facts

import (
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/vinceanalytics/wikiclicks/internal/compute"
	"github.com/vinceanalytics/wikiclicks/internal/dict"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
)

const (
	ArticlePopularity = "article_popularity"
	ArticleTop        = "article_top"
	ReferrersTop      = "referrers_top"
	EdgesMonthly      = "edges_monthly"
)

// Artifacts lists every gold fact table in publishing order.
var Artifacts = []string{ArticlePopularity, ArticleTop, ReferrersTop, EdgesMonthly}

var ErrEmptyPartition = errors.New("facts: empty partition file")

// Transition is one cleaned clickstream row.
type Transition struct {
	PrevTitle *string `parquet:"prev_title,optional"`
	CurrTitle *string `parquet:"curr_title,optional"`
	Type      *string `parquet:"type,optional"`
	N         int64   `parquet:"n"`
}

// An empty title carries no article and is treated like a missing one.
func (t *Transition) curr() string {
	if t.CurrTitle == nil {
		return ""
	}
	return *t.CurrTitle
}

func (t *Transition) prev() string {
	if t.PrevTitle == nil {
		return ""
	}
	return *t.PrevTitle
}

type Popularity struct {
	Lang        string `parquet:"lang,dict"`
	Year        int32  `parquet:"year"`
	Month       int32  `parquet:"month"`
	CurrID      int64  `parquet:"curr_id"`
	TotalClicks int64  `parquet:"total_clicks"`
}

type Top struct {
	Lang        string `parquet:"lang,dict"`
	Year        int32  `parquet:"year"`
	Month       int32  `parquet:"month"`
	CurrID      int64  `parquet:"curr_id"`
	TotalClicks int64  `parquet:"total_clicks"`
	Rank        int64  `parquet:"rn"`
}

type Edge struct {
	Lang             string `parquet:"lang,dict"`
	Year             int32  `parquet:"year"`
	Month            int32  `parquet:"month"`
	PrevID           int64  `parquet:"prev_id"`
	CurrID           int64  `parquet:"curr_id"`
	TotalTransitions int64  `parquet:"total_transitions"`
}

type Referrer struct {
	Lang           string `parquet:"lang,dict"`
	Year           int32  `parquet:"year"`
	Month          int32  `parquet:"month"`
	CurrID         int64  `parquet:"curr_id"`
	PrevID         int64  `parquet:"prev_id"`
	ClicksFromPrev int64  `parquet:"clicks_from_prev"`
	Rank           int64  `parquet:"rn"`
}

// Key identifies the partition facts are computed for.
type Key struct {
	Lang  string
	Year  int
	Month int
}

// Read loads the transitions of a partition file, dropping rows without a
// destination or with a non positive count.
func Read(path string) ([]Transition, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("%w %s", ErrEmptyPartition, path)
	}
	rows, err := storage.Read[Transition](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	o := rows[:0]
	for _, r := range rows {
		if r.N <= 0 || r.curr() == "" {
			continue
		}
		o = append(o, r)
	}
	return o, nil
}

// Titles returns every distinct non empty title referenced as a source or a
// destination.
func Titles(rows []Transition) []string {
	seen := make(map[string]struct{})
	var o []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		o = append(o, s)
	}
	for i := range rows {
		add(rows[i].curr())
		add(rows[i].prev())
	}
	return o
}

// Resolved is a transition with titles replaced by dictionary ids. Prev is 0
// when the transition has no source article.
type Resolved struct {
	Prev int64
	Curr int64
	N    int64
}

// Resolve maps titles to ids. Every destination must be known to d; sources
// missing from d resolve to 0.
func Resolve(rows []Transition, d *dict.Dictionary) ([]Resolved, error) {
	o := make([]Resolved, 0, len(rows))
	for i := range rows {
		curr, ok := d.ID(rows[i].curr())
		if !ok {
			return nil, fmt.Errorf("facts: title %q missing from dictionary", rows[i].curr())
		}
		r := Resolved{Curr: curr, N: rows[i].N}
		if p := rows[i].prev(); p != "" {
			r.Prev, _ = d.ID(p)
		}
		o = append(o, r)
	}
	return o, nil
}

type pair struct {
	prev, curr int64
}

func cmpPair(a, b pair) int {
	return cmp.Or(cmp.Compare(a.prev, b.prev), cmp.Compare(a.curr, b.curr))
}

// Clicks sums transitions per destination.
func Clicks(rs []Resolved) map[int64]int64 {
	o := make(map[int64]int64)
	for _, r := range rs {
		o[r.Curr] += r.N
	}
	return o
}

func pairs(rs []Resolved) map[pair]int64 {
	o := make(map[pair]int64)
	for _, r := range rs {
		if r.Prev == 0 {
			continue
		}
		o[pair{prev: r.Prev, curr: r.Curr}] += r.N
	}
	return o
}

// PopularityOf returns one row per destination ordered by id.
func PopularityOf(k Key, rs []Resolved) []Popularity {
	m := Clicks(rs)
	ids := compute.Sorted(m, cmp.Compare[int64])
	o := make([]Popularity, 0, len(ids))
	for _, id := range ids {
		o = append(o, Popularity{
			Lang: k.Lang, Year: int32(k.Year), Month: int32(k.Month),
			CurrID: id, TotalClicks: m[id],
		})
	}
	return o
}

// TopOf ranks destinations by clicks, ties broken by ascending id, and keeps
// the first n.
func TopOf(k Key, rs []Resolved, n int) []Top {
	ranked := compute.Rank(Clicks(rs), cmp.Compare[int64], n)
	o := make([]Top, 0, len(ranked))
	for _, r := range ranked {
		o = append(o, Top{
			Lang: k.Lang, Year: int32(k.Year), Month: int32(k.Month),
			CurrID: r.Key, TotalClicks: r.Value, Rank: r.Rank,
		})
	}
	return o
}

// EdgesOf sums transitions per (source, destination) keeping pairs with at
// least minCount transitions, ordered by source then destination.
func EdgesOf(k Key, rs []Resolved, minCount int64) []Edge {
	m := compute.AtLeast(pairs(rs), minCount)
	keys := compute.Sorted(m, cmpPair)
	o := make([]Edge, 0, len(keys))
	for _, p := range keys {
		o = append(o, Edge{
			Lang: k.Lang, Year: int32(k.Year), Month: int32(k.Month),
			PrevID: p.prev, CurrID: p.curr, TotalTransitions: m[p],
		})
	}
	return o
}

// ReferrersOf ranks the sources of every destination, keeping the first m
// sources with at least minCount clicks. Ties are broken by ascending source
// id.
func ReferrersOf(k Key, rs []Resolved, minCount int64, m int) []Referrer {
	ranked := compute.RankBy(
		compute.AtLeast(pairs(rs), minCount),
		func(p pair) int64 { return p.curr },
		cmp.Compare[int64],
		func(a, b pair) int { return cmp.Compare(a.prev, b.prev) },
		m,
	)
	o := make([]Referrer, 0, len(ranked))
	for _, r := range ranked {
		o = append(o, Referrer{
			Lang: k.Lang, Year: int32(k.Year), Month: int32(k.Month),
			CurrID: r.Key.curr, PrevID: r.Key.prev, ClicksFromPrev: r.Value, Rank: r.Rank,
		})
	}
	return o
}
