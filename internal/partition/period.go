package partition

import (
	"fmt"
	"iter"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) Less(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) Prev() Period {
	if p.Month <= 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Trailing yields p and the n-1 months before it, newest first.
func (p Period) Trailing(n int) iter.Seq[Period] {
	return func(yield func(Period) bool) {
		x := p
		for range n {
			if !yield(x) {
				return
			}
			x = x.Prev()
		}
	}
}

// Window returns the set of periods produced by Trailing.
func (p Period) Window(n int) map[Period]struct{} {
	o := make(map[Period]struct{}, n)
	for x := range p.Trailing(n) {
		o[x] = struct{}{}
	}
	return o
}

// Latest returns the greatest period among ls.
func Latest(ls []Partition) (Period, bool) {
	var top Period
	for _, p := range ls {
		if top.Less(p.Period()) {
			top = p.Period()
		}
	}
	return top, !top.IsZero()
}
