package dict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/wikiclicks/internal/storage"
)

func TestMerge(t *testing.T) {
	d := New()
	m := d.Merge([]string{"Paris", "London", "Paris", ""})
	require.Zero(t, d.Len(), "merge must not modify the receiver")
	require.Equal(t, []Entry{{1, "London"}, {2, "Paris"}}, m.Entries())
	require.Equal(t, int64(2), m.Max())
	require.Equal(t, 1, m.Version())

	t.Run("known titles keep their ids", func(t *testing.T) {
		n := m.Merge([]string{"Berlin", "Paris", "Zurich"})
		id, ok := n.ID("Paris")
		require.True(t, ok)
		require.Equal(t, int64(2), id)
		id, _ = n.ID("London")
		require.Equal(t, int64(1), id)
		id, _ = n.ID("Berlin")
		require.Equal(t, int64(3), id)
		id, _ = n.ID("Zurich")
		require.Equal(t, int64(4), id)
		require.Equal(t, 2, m.Len())
	})

	t.Run("nothing new returns the same value", func(t *testing.T) {
		require.Same(t, m, m.Merge([]string{"London", "Paris"}))
	})

	t.Run("order of observation does not matter", func(t *testing.T) {
		a := m.Merge([]string{"c", "a", "b"})
		b := m.Merge([]string{"b", "c", "a", "a"})
		require.Equal(t, a.Entries(), b.Entries())
		require.Equal(t, a.Digest(), b.Digest())
	})

	t.Run("title lookup", func(t *testing.T) {
		title, ok := m.Title(2)
		require.True(t, ok)
		require.Equal(t, "Paris", title)
		_, ok = m.Title(3)
		require.False(t, ok)
	})
}

func TestIDStability(t *testing.T) {
	d := New().Merge([]string{"m", "n"})
	want := map[string]int64{}
	for _, e := range d.Entries() {
		want[e.Title] = e.ID
	}
	batches := [][]string{{"a", "z"}, {"m", "b"}, {"zz", "aa", "n"}}
	for _, b := range batches {
		d = d.Merge(b)
		for title, id := range want {
			got, ok := d.ID(title)
			require.True(t, ok)
			require.Equal(t, id, got, title)
		}
		for _, e := range d.Entries() {
			want[e.Title] = e.ID
		}
	}
	require.Equal(t, int64(len(want)), d.Max())
}

func TestLoadPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dimensions", "articles", "lang=en", "dict.parquet")

	d, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, d.Len())

	d = d.Merge([]string{"Paris", "London"})
	_, err = d.Persist(&storage.Publisher{}, path)
	require.NoError(t, err)

	cols, err := storage.Columns(path)
	require.NoError(t, err)
	require.Len(t, cols, 2)

	o, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, d.Entries(), o.Entries())
	require.Equal(t, d.Digest(), o.Digest())
	require.Zero(t, o.Version())

	n := o.Merge([]string{"Athens"})
	id, _ := n.ID("Athens")
	require.Equal(t, int64(3), id)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.parquet")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	d, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, d.Len())
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()

	t.Run("not parquet", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.parquet")
		require.NoError(t, os.WriteFile(path, []byte("definitely not parquet"), 0644))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrCorruptDictionary)
	})

	t.Run("wrong columns", func(t *testing.T) {
		type other struct {
			Key string `parquet:"key"`
		}
		path := filepath.Join(dir, "other.parquet")
		_, err := storage.Write(&storage.Publisher{}, path, []other{{Key: "x"}})
		require.NoError(t, err)
		_, err = Load(path)
		require.ErrorIs(t, err, ErrCorruptDictionary)
	})

	t.Run("duplicate title", func(t *testing.T) {
		path := filepath.Join(dir, "dup.parquet")
		_, err := storage.Write(&storage.Publisher{}, path, []Entry{{1, "a"}, {2, "a"}})
		require.NoError(t, err)
		_, err = Load(path)
		require.ErrorIs(t, err, ErrCorruptDictionary)
	})

	t.Run("duplicate id", func(t *testing.T) {
		path := filepath.Join(dir, "dupid.parquet")
		_, err := storage.Write(&storage.Publisher{}, path, []Entry{{1, "a"}, {1, "b"}})
		require.NoError(t, err)
		_, err = Load(path)
		require.ErrorIs(t, err, ErrCorruptDictionary)
	})
}

func TestDigest(t *testing.T) {
	a, err := FromEntries([]Entry{{1, "London"}, {2, "Paris"}})
	require.NoError(t, err)
	b, err := FromEntries([]Entry{{2, "London"}, {1, "Paris"}})
	require.NoError(t, err)
	require.NotEqual(t, a.Digest(), b.Digest())

	c, err := FromEntries([]Entry{{2, "Paris"}, {1, "London"}})
	require.NoError(t, err)
	require.Equal(t, a.Digest(), c.Digest())
}

func TestPersistFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "articles"), []byte("x"), 0644))
	d := New().Merge([]string{"Paris"})
	_, err := d.Persist(&storage.Publisher{}, filepath.Join(dir, "articles", "lang=en", "dict.parquet"))
	require.Error(t, err)
}
