package insights

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"github.com/vinceanalytics/wikiclicks/internal/dict"
)

// Variant is the column an article is identified by in a source.
type Variant uint8

const (
	None Variant = iota
	Title
	Name
	ID
)

// probing order
var variants = []Variant{Title, Name, ID}

func (v Variant) Column(prefix string) string {
	switch v {
	case Title:
		return prefix + "_title"
	case Name:
		return prefix + "_name"
	case ID:
		return prefix + "_id"
	default:
		return ""
	}
}

func (v Variant) String() string {
	switch v {
	case Title:
		return "title"
	case Name:
		return "name"
	case ID:
		return "id"
	default:
		return "none"
	}
}

// Choose returns the first variant of prefix present in every schema.
func Choose(schemas []map[string]struct{}, prefix string) Variant {
	if len(schemas) == 0 {
		return None
	}
next:
	for _, v := range variants {
		col := v.Column(prefix)
		for _, s := range schemas {
			if _, ok := s[col]; !ok {
				continue next
			}
		}
		return v
	}
	return None
}

// namer turns identifier values into display titles. Ids are looked up in the
// language dictionary and fall back to their decimal form.
type namer struct {
	dict *dict.Dictionary
}

func (n namer) text(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Int32, parquet.Int64:
		id := integer(v)
		if n.dict != nil {
			if t, ok := n.dict.Title(id); ok {
				return t
			}
		}
		return strconv.FormatInt(id, 10)
	default:
		return v.String()
	}
}

func integer(v parquet.Value) int64 {
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	default:
		return 0
	}
}

// scan calls fn for every row of the file at path with the values of cols in
// the same order. Values of fn are only valid for the duration of the call.
func scan(path string, cols []string, fn func(values []parquet.Value)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return err
	}
	r, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	schema := r.Schema()
	pos := make(map[int]int, len(cols))
	for i, c := range cols {
		leaf, ok := schema.Lookup(c)
		if !ok {
			return fmt.Errorf("%s: missing column %q", path, c)
		}
		pos[leaf.ColumnIndex] = i
	}
	values := make([]parquet.Value, len(cols))
	buf := make([]parquet.Row, 1024)
	for _, g := range r.RowGroups() {
		if err := scanRows(g.Rows(), buf, pos, values, fn); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return nil
}

func scanRows(rows parquet.Rows, buf []parquet.Row, pos map[int]int, values []parquet.Value, fn func([]parquet.Value)) error {
	defer rows.Close()
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			clear(values)
			for _, v := range row {
				if i, ok := pos[v.Column()]; ok {
					values[i] = v
				}
			}
			fn(values)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
