// Package dict maintains the per language title dictionary. Every article title
// is assigned a stable int64 surrogate key once, and all gold artifacts refer
// to articles through that key.
//
// A Dictionary value is never modified after construction. Merge returns a new
// value so a caller that fails to persist it can keep using the previous one.
package dict

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
)

var ErrCorruptDictionary = errors.New("dict: corrupt dictionary")

type Entry struct {
	ID    int64  `parquet:"id"`
	Title string `parquet:"title"`
}

type Dictionary struct {
	entries []Entry
	ids     map[string]int64
	max     int64
	version int
}

func New() *Dictionary {
	return &Dictionary{ids: make(map[string]int64)}
}

// Load reads the dictionary stored at path. A missing or empty file yields an
// empty dictionary.
func Load(path string) (*Dictionary, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}
	if stat.Size() == 0 {
		return New(), nil
	}
	cols, err := storage.Columns(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptDictionary, path, err)
	}
	for _, c := range []string{"id", "title"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w %s: missing column %q", ErrCorruptDictionary, path, c)
		}
	}
	rows, err := storage.Read[Entry](path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptDictionary, path, err)
	}
	d, err := FromEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptDictionary, path, err)
	}
	return d, nil
}

// FromEntries builds a dictionary, rejecting anything that is not a bijection
// between positive ids and non empty titles.
func FromEntries(rows []Entry) (*Dictionary, error) {
	d := &Dictionary{
		entries: make([]Entry, 0, len(rows)),
		ids:     make(map[string]int64, len(rows)),
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, e := range rows {
		if e.ID <= 0 {
			return nil, fmt.Errorf("invalid id %d for %q", e.ID, e.Title)
		}
		if e.Title == "" {
			return nil, fmt.Errorf("empty title for id %d", e.ID)
		}
		if _, ok := seen[e.ID]; ok {
			return nil, fmt.Errorf("duplicate id %d", e.ID)
		}
		if _, ok := d.ids[e.Title]; ok {
			return nil, fmt.Errorf("duplicate title %q", e.Title)
		}
		seen[e.ID] = struct{}{}
		d.ids[e.Title] = e.ID
		d.entries = append(d.entries, e)
		d.max = max(d.max, e.ID)
	}
	slices.SortFunc(d.entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return d, nil
}

// Merge returns a dictionary holding every title of d plus the titles not yet
// known. New ids start after the current maximum and follow the byte order of
// the new titles, so the outcome only depends on the set of titles observed.
// When nothing is new d itself is returned.
func (d *Dictionary) Merge(titles []string) *Dictionary {
	var fresh []string
	pending := make(map[string]struct{})
	for _, t := range titles {
		if t == "" {
			continue
		}
		if _, ok := d.ids[t]; ok {
			continue
		}
		if _, ok := pending[t]; ok {
			continue
		}
		pending[t] = struct{}{}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return d
	}
	slices.Sort(fresh)
	o := &Dictionary{
		entries: make([]Entry, len(d.entries), len(d.entries)+len(fresh)),
		ids:     maps.Clone(d.ids),
		max:     d.max,
		version: d.version + 1,
	}
	copy(o.entries, d.entries)
	if o.ids == nil {
		o.ids = make(map[string]int64, len(fresh))
	}
	for _, t := range fresh {
		o.max++
		o.ids[t] = o.max
		o.entries = append(o.entries, Entry{ID: o.max, Title: t})
	}
	return o
}

// Persist atomically writes every entry, ordered by id, to path. The published
// file is read back and its digest compared with d; ids are only handed out
// once the file is known to hold the same assignments.
func (d *Dictionary) Persist(p *storage.Publisher, path string) (int64, error) {
	size, err := storage.Write(p, path, d.entries)
	if err != nil {
		return 0, err
	}
	got, err := Load(path)
	if err != nil {
		return size, err
	}
	if want, have := d.Digest(), got.Digest(); want != have {
		return size, fmt.Errorf("%w %s: digest %x after persist, want %x", ErrCorruptDictionary, path, have, want)
	}
	return size, nil
}

func (d *Dictionary) ID(title string) (int64, bool) {
	id, ok := d.ids[title]
	return id, ok
}

// Title finds the title assigned to id.
func (d *Dictionary) Title(id int64) (string, bool) {
	i, ok := slices.BinarySearchFunc(d.entries, id, func(e Entry, id int64) int {
		return cmp.Compare(e.ID, id)
	})
	if !ok {
		return "", false
	}
	return d.entries[i].Title, true
}

func (d *Dictionary) Len() int { return len(d.entries) }

// Max is the greatest assigned id, 0 for an empty dictionary.
func (d *Dictionary) Max() int64 { return d.max }

// Version counts the merges that added titles since the dictionary was loaded.
func (d *Dictionary) Version() int { return d.version }

// Entries returns a copy of all entries ordered by id.
func (d *Dictionary) Entries() []Entry {
	return slices.Clone(d.entries)
}

// Digest is a content hash of the dictionary. Two dictionaries with the same
// assignments have the same digest.
func (d *Dictionary) Digest() uint64 {
	h := xxhash.New()
	var b [8]byte
	for _, e := range d.entries {
		binary.LittleEndian.PutUint64(b[:], uint64(e.ID))
		h.Write(b[:])
		h.WriteString(e.Title)
		h.Write([]byte{0})
	}
	return h.Sum64()
}
