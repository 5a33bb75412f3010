package insights

import (
	"cmp"
	"slices"

	"github.com/vinceanalytics/wikiclicks/internal/compute"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
)

type YearTop struct {
	Year       int32  `parquet:"year"`
	CurrTitle  string `parquet:"curr_title"`
	ClicksYear int64  `parquet:"clicks_year"`
	Rank       int64  `parquet:"rn"`
}

type AllTime struct {
	CurrTitle     string `parquet:"curr_title"`
	ClicksAllTime int64  `parquet:"clicks_all_time"`
}

type Edge struct {
	PrevTitle     string `parquet:"prev_title"`
	CurrTitle     string `parquet:"curr_title"`
	Transitions6m int64  `parquet:"transitions_6m"`
}

// Trend compares the clicks of an article in two consecutive months.
// PctDelta is null when the previous month had no clicks.
type Trend struct {
	CurrTitle  string   `parquet:"curr_title"`
	ClicksNow  int64    `parquet:"clicks_now"`
	ClicksPrev int64    `parquet:"clicks_prev"`
	AbsDelta   int64    `parquet:"abs_delta"`
	PctDelta   *float64 `parquet:"pct_delta,optional"`
}

type Referrer struct {
	CurrTitle string `parquet:"curr_title"`
	PrevTitle string `parquet:"prev_title"`
	Clicks6m  int64  `parquet:"clicks_6m"`
	Rank      int64  `parquet:"rn"`
}

type pair struct {
	prev, curr string
}

func cmpPair(a, b pair) int {
	return cmp.Or(cmp.Compare(a.prev, b.prev), cmp.Compare(a.curr, b.curr))
}

// TopByYear ranks articles by the clicks summed over each year, keeping the
// first n per year.
func TopByYear(cs []click, n int) map[int][]YearTop {
	years := make(map[int]map[string]int64)
	for _, c := range cs {
		m, ok := years[c.period.Year]
		if !ok {
			m = make(map[string]int64)
			years[c.period.Year] = m
		}
		m[c.title] += c.n
	}
	o := make(map[int][]YearTop, len(years))
	for y, m := range years {
		ranked := compute.Rank(m, cmp.Compare[string], n)
		rows := make([]YearTop, 0, len(ranked))
		for _, r := range ranked {
			rows = append(rows, YearTop{Year: int32(y), CurrTitle: r.Key, ClicksYear: r.Value, Rank: r.Rank})
		}
		o[y] = rows
	}
	return o
}

func AllTimeTop(cs []click, n int) []AllTime {
	m := make(map[string]int64)
	for _, c := range cs {
		m[c.title] += c.n
	}
	ranked := compute.Rank(m, cmp.Compare[string], n)
	o := make([]AllTime, 0, len(ranked))
	for _, r := range ranked {
		o = append(o, AllTime{CurrTitle: r.Key, ClicksAllTime: r.Value})
	}
	return o
}

// Trending compares each article's clicks in now with the month before.
// Articles missing from either month are left out. Rows are ordered by
// percentage change, nulls last, then by absolute change.
func Trending(cs []click, now partition.Period, n int) []Trend {
	before := now.Prev()
	curr := make(map[string]int64)
	prev := make(map[string]int64)
	for _, c := range cs {
		switch c.period {
		case now:
			curr[c.title] += c.n
		case before:
			prev[c.title] += c.n
		}
	}
	o := make([]Trend, 0, min(len(curr), len(prev)))
	for title, a := range curr {
		b, ok := prev[title]
		if !ok {
			continue
		}
		t := Trend{CurrTitle: title, ClicksNow: a, ClicksPrev: b, AbsDelta: a - b}
		if b > 0 {
			pct := float64(a-b) * 100 / float64(b)
			t.PctDelta = &pct
		}
		o = append(o, t)
	}
	slices.SortFunc(o, func(x, y Trend) int {
		switch {
		case x.PctDelta == nil && y.PctDelta != nil:
			return 1
		case x.PctDelta != nil && y.PctDelta == nil:
			return -1
		case x.PctDelta != nil:
			if c := cmp.Compare(*y.PctDelta, *x.PctDelta); c != 0 {
				return c
			}
		}
		return cmp.Or(cmp.Compare(y.AbsDelta, x.AbsDelta), cmp.Compare(x.CurrTitle, y.CurrTitle))
	})
	if n > 0 && len(o) > n {
		o = o[:n]
	}
	return o
}

func pairs(ts []transition) map[pair]int64 {
	o := make(map[pair]int64)
	for _, t := range ts {
		o[pair{prev: t.prev, curr: t.curr}] += t.n
	}
	return o
}

// Edges keeps the n pairs with the most transitions.
func Edges(ts []transition, n int) []Edge {
	ranked := compute.Rank(pairs(ts), cmpPair, n)
	o := make([]Edge, 0, len(ranked))
	for _, r := range ranked {
		o = append(o, Edge{PrevTitle: r.Key.prev, CurrTitle: r.Key.curr, Transitions6m: r.Value})
	}
	return o
}

// Referrers keeps the m sources with the most transitions of every
// destination, ordered by destination then rank.
func Referrers(ts []transition, m int) []Referrer {
	ranked := compute.RankBy(pairs(ts),
		func(p pair) string { return p.curr },
		cmp.Compare[string],
		func(a, b pair) int { return cmp.Compare(a.prev, b.prev) },
		m,
	)
	o := make([]Referrer, 0, len(ranked))
	for _, r := range ranked {
		o = append(o, Referrer{CurrTitle: r.Key.curr, PrevTitle: r.Key.prev, Clicks6m: r.Value, Rank: r.Rank})
	}
	return o
}
