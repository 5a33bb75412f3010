// Package partition locates hive style language/year/month partitions.
//
// The layout is
//
//	<root>/lang=<lang>/year=<yyyy>/month=<mm>/data.parquet
//
// and is shared by the cleaned input, every gold artifact and the derived
// insights.
package partition

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	DataFile = "data.parquet"

	langKey  = "lang"
	yearKey  = "year"
	monthKey = "month"
)

var ErrMalformedPartition = errors.New("partition: malformed partition path")

type Partition struct {
	Lang  string
	Year  int
	Month int
	Path  string
}

func (p Partition) Period() Period {
	return Period{Year: p.Year, Month: p.Month}
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%04d-%02d", p.Lang, p.Year, p.Month)
}

// Parse extracts the partition keys from the three directories holding path.
func Parse(path string) (Partition, error) {
	dir := filepath.Dir(path)
	month, err := segment(filepath.Base(dir), monthKey)
	if err != nil {
		return Partition{}, fmt.Errorf("%w %q: %v", ErrMalformedPartition, path, err)
	}
	dir = filepath.Dir(dir)
	year, err := segment(filepath.Base(dir), yearKey)
	if err != nil {
		return Partition{}, fmt.Errorf("%w %q: %v", ErrMalformedPartition, path, err)
	}
	dir = filepath.Dir(dir)
	lang, err := segment(filepath.Base(dir), langKey)
	if err != nil {
		return Partition{}, fmt.Errorf("%w %q: %v", ErrMalformedPartition, path, err)
	}
	y, err := strconv.Atoi(year)
	if err != nil || y <= 0 {
		return Partition{}, fmt.Errorf("%w %q: bad year %q", ErrMalformedPartition, path, year)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Partition{}, fmt.Errorf("%w %q: bad month %q", ErrMalformedPartition, path, month)
	}
	if lang == "" {
		return Partition{}, fmt.Errorf("%w %q: empty language", ErrMalformedPartition, path)
	}
	return Partition{Lang: lang, Year: y, Month: m, Path: path}, nil
}

func segment(name, key string) (string, error) {
	k, v, ok := strings.Cut(name, "=")
	if !ok || k != key {
		return "", fmt.Errorf("expected %s=<value> got %q", key, name)
	}
	return v, nil
}

// Discover returns all partitions found under root sorted by language then
// period. Paths that match the glob but do not parse are returned separately
// so callers can report them without aborting.
func Discover(root string) (found []Partition, malformed []error, err error) {
	pattern := filepath.Join(root, langKey+"=*", yearKey+"=*", monthKey+"=*", DataFile)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range files {
		p, err := Parse(f)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		found = append(found, p)
	}
	Sort(found)
	return found, malformed, nil
}

func Sort(ls []Partition) {
	slices.SortFunc(ls, func(a, b Partition) int {
		return cmp.Or(
			cmp.Compare(a.Lang, b.Lang),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Month, b.Month),
		)
	})
}

// Filter narrows a set of partitions. Zero values match everything.
type Filter struct {
	Lang   string
	Year   int
	Month  int
	Latest bool
}

func (f Filter) Apply(ls []Partition) []Partition {
	o := make([]Partition, 0, len(ls))
	for _, p := range ls {
		if f.Lang != "" && p.Lang != f.Lang {
			continue
		}
		if f.Year != 0 && p.Year != f.Year {
			continue
		}
		if f.Month != 0 && p.Month != f.Month {
			continue
		}
		o = append(o, p)
	}
	if f.Latest && len(o) > 0 {
		o = LatestOnly(o)
	}
	return o
}

// LatestOnly keeps the partitions sharing the greatest period, ordered by
// language.
func LatestOnly(ls []Partition) []Partition {
	top, _ := Latest(ls)
	o := make([]Partition, 0, len(ls))
	for _, p := range ls {
		if p.Period() == top {
			o = append(o, p)
		}
	}
	Sort(o)
	return o
}

// ByLanguage groups partitions per language, each group in chronological
// order.
func ByLanguage(ls []Partition) map[string][]Partition {
	o := make(map[string][]Partition)
	for _, p := range ls {
		o[p.Lang] = append(o[p.Lang], p)
	}
	for _, v := range o {
		Sort(v)
	}
	return o
}

// Languages returns the sorted union of languages found directly under each
// of the artifact directories in root.
func Languages(root string, artifacts ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, a := range artifacts {
		entries, err := os.ReadDir(filepath.Join(root, a))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if lang, err := segment(e.Name(), langKey); err == nil && lang != "" {
				seen[lang] = struct{}{}
			}
		}
	}
	o := make([]string, 0, len(seen))
	for k := range seen {
		o = append(o, k)
	}
	slices.Sort(o)
	return o, nil
}

// Path returns the data file of artifact for one language and period.
func Path(root, artifact, lang string, year, month int) string {
	return filepath.Join(YearPath(root, artifact, lang, year),
		fmt.Sprintf("%s=%02d", monthKey, month), DataFile)
}

// LangPath is the directory holding every partition of a language.
func LangPath(root, artifact, lang string) string {
	return filepath.Join(root, artifact, langKey+"="+lang)
}

func YearPath(root, artifact, lang string, year int) string {
	return filepath.Join(LangPath(root, artifact, lang), fmt.Sprintf("%s=%04d", yearKey, year))
}
