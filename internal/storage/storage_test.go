package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int64   `parquet:"id"`
	Title string  `parquet:"title"`
	Note  *string `parquet:"note,optional"`
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "data.parquet")
	require.False(t, Exists(path))

	note := "n"
	rows := []row{{ID: 1, Title: "London"}, {ID: 2, Title: "Paris", Note: &note}}
	size, err := Write(&Publisher{}, path, rows)
	require.NoError(t, err)
	require.Positive(t, size)
	require.True(t, Exists(path))

	got, err := Read[row](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "London", got[0].Title)
	require.Nil(t, got[0].Note)
	require.Equal(t, "n", *got[1].Note)

	cols, err := Columns(path)
	require.NoError(t, err)
	require.Contains(t, cols, "id")
	require.Contains(t, cols, "title")
	require.Contains(t, cols, "note")

	n, err := Rows(path)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestWriteRemovesStaleStaging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.parquet")
	stale := path + tmpMarker + "OLD"
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))

	_, err := Write(&Publisher{}, path, []row{{ID: 1, Title: "x"}})
	require.NoError(t, err)
	_, err = os.Stat(stale)
	require.ErrorIs(t, err, os.ErrNotExist)

	ls, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, ls, 1)
}

func TestWriteThroughScratch(t *testing.T) {
	scratch := t.TempDir()
	path := filepath.Join(t.TempDir(), "data.parquet")
	_, err := Write(&Publisher{Scratch: scratch, Retries: 1}, path, []row{{ID: 7, Title: "y"}})
	require.NoError(t, err)

	got, err := Read[row](path)
	require.NoError(t, err)
	require.Equal(t, []row{{ID: 7, Title: "y"}}, got)

	ls, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, ls)
}

func TestSweep(t *testing.T) {
	scratch := t.TempDir()
	stale := []string{
		filepath.Join(scratch, "data.parquet"+tmpMarker+"OLD"),
		filepath.Join(scratch, "dict.parquet"+tmpMarker+"OLD"),
	}
	for _, f := range stale {
		require.NoError(t, os.WriteFile(f, []byte("partial"), 0644))
	}
	keep := filepath.Join(scratch, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))

	p := &Publisher{Scratch: scratch}
	require.NoError(t, p.Sweep())
	for _, f := range stale {
		_, err := os.Stat(f)
		require.ErrorIs(t, err, os.ErrNotExist)
	}
	require.FileExists(t, keep)

	require.NoError(t, (&Publisher{}).Sweep())
	require.NoError(t, (&Publisher{Scratch: filepath.Join(scratch, "missing")}).Sweep())
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	_, err := Write(&Publisher{}, path, []row{})
	require.NoError(t, err)
	require.True(t, Exists(path))
	got, err := Read[row](path)
	require.NoError(t, err)
	require.Empty(t, got)

	n, err := Rows(path)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestExistsZeroSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.False(t, Exists(path))
}
