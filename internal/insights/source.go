package insights

import (
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/vinceanalytics/wikiclicks/internal/partition"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
)

// source is one gold artifact restricted to a single language.
type source struct {
	artifact string
	parts    []partition.Partition
	schemas  []map[string]struct{}
	rows     []int64
}

func open(gold, artifact, lang string) (*source, error) {
	found, _, err := partition.Discover(filepath.Join(gold, artifact))
	if err != nil {
		return nil, err
	}
	s := &source{
		artifact: artifact,
		parts:    partition.Filter{Lang: lang}.Apply(found),
	}
	for _, p := range s.parts {
		cols, err := storage.Columns(p.Path)
		if err != nil {
			return nil, err
		}
		n, err := storage.Rows(p.Path)
		if err != nil {
			return nil, err
		}
		s.schemas = append(s.schemas, cols)
		s.rows = append(s.rows, n)
	}
	return s, nil
}

func (s *source) variant(prefix string) Variant {
	return Choose(s.schemas, prefix)
}

// latest is the most recent period holding at least one row.
func (s *source) latest() (partition.Period, bool) {
	var ls []partition.Partition
	for i, p := range s.parts {
		if s.rows[i] > 0 {
			ls = append(ls, p)
		}
	}
	return partition.Latest(ls)
}

func (s *source) years() []int {
	var o []int
	for _, p := range s.parts {
		if len(o) == 0 || o[len(o)-1] != p.Year {
			o = append(o, p.Year)
		}
	}
	return o
}

// click is the number of visits of an article in one month.
type click struct {
	period partition.Period
	title  string
	n      int64
}

// transition is the number of clicks from one article to another in one
// month.
type transition struct {
	period partition.Period
	prev   string
	curr   string
	n      int64
}

// clicks reads popularity rows of the periods accepted by keep.
func (s *source) clicks(curr Variant, nm namer, keep func(partition.Period) bool) ([]click, error) {
	var o []click
	cols := []string{curr.Column("curr"), "total_clicks"}
	for _, p := range s.parts {
		period := p.Period()
		if keep != nil && !keep(period) {
			continue
		}
		err := scan(p.Path, cols, func(v []parquet.Value) {
			title := nm.text(v[0])
			if title == "" {
				return
			}
			o = append(o, click{period: period, title: title, n: integer(v[1])})
		})
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// transitions reads edge rows of the periods accepted by keep.
func (s *source) transitions(prev, curr Variant, nm namer, keep func(partition.Period) bool) ([]transition, error) {
	var o []transition
	cols := []string{prev.Column("prev"), curr.Column("curr"), "total_transitions"}
	for _, p := range s.parts {
		period := p.Period()
		if keep != nil && !keep(period) {
			continue
		}
		err := scan(p.Path, cols, func(v []parquet.Value) {
			t := transition{period: period, prev: nm.text(v[0]), curr: nm.text(v[1]), n: integer(v[2])}
			if t.prev == "" || t.curr == "" {
				return
			}
			o = append(o, t)
		})
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}
