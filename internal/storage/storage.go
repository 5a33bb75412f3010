// Package storage reads and atomically publishes parquet artifacts.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/parquet-go/parquet-go"
)

const (
	RowGroupSize = 250_000

	tmpMarker = ".tmp-"
)

// Publisher writes files to a staging location and renames them over their
// final path so readers never observe a partially written file.
//
// When Scratch is empty staging files live next to their target. Otherwise
// they are written inside Scratch; a rename that crosses devices falls back to
// copying next to the target before the final rename.
type Publisher struct {
	Scratch string
	Retries uint64
}

// Write encodes rows to path. It returns the size of the published file.
func Write[T any](p *Publisher, path string, rows []T) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	if err := RemoveStale(path); err != nil {
		return 0, err
	}
	stage, err := p.stage(path)
	if err != nil {
		return 0, err
	}
	if err := encode(stage, rows); err != nil {
		os.Remove(stage)
		return 0, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := p.publish(stage, path); err != nil {
		return 0, fmt.Errorf("publishing %s: %w", path, err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (p *Publisher) stage(path string) (string, error) {
	suffix := tmpMarker + ulid.Make().String()
	if p == nil || p.Scratch == "" {
		return path + suffix, nil
	}
	if err := os.MkdirAll(p.Scratch, 0755); err != nil {
		return "", err
	}
	return filepath.Join(p.Scratch, filepath.Base(path)+suffix), nil
}

func (p *Publisher) publish(stage, path string) error {
	var retries uint64
	if p != nil {
		retries = p.Retries
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		err := os.Rename(stage, path)
		if err == nil {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, syscall.EXDEV) {
			sibling := path + tmpMarker + ulid.Make().String()
			if err := copyFile(stage, sibling); err != nil {
				os.Remove(sibling)
				return err
			}
			os.Remove(stage)
			stage = sibling
			return os.Rename(stage, path)
		}
		return err
	}, backoff.WithMaxRetries(b, retries))
	if err != nil {
		os.Remove(stage)
	}
	return err
}

func encode[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := parquet.NewGenericWriter[T](f,
		parquet.Compression(&parquet.Zstd),
		parquet.MaxRowsPerRowGroup(RowGroupSize),
	)
	if _, err := w.Write(rows); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

// RemoveStale deletes staging files left beside path by an interrupted write.
func RemoveStale(path string) error {
	ls, err := filepath.Glob(path + tmpMarker + "*")
	if err != nil {
		return err
	}
	for _, f := range ls {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Sweep removes the staging files an interrupted run left in the scratch
// directory. Files being staged concurrently would be removed as well, so it
// is only called before the owner of the directory starts publishing.
func (p *Publisher) Sweep() error {
	if p == nil || p.Scratch == "" {
		return nil
	}
	ls, err := filepath.Glob(filepath.Join(p.Scratch, "*"+tmpMarker+"*"))
	if err != nil {
		return err
	}
	for _, f := range ls {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Read decodes every row of the parquet file at path.
func Read[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// Exists reports whether path is a regular, non empty file.
func Exists(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.Mode().IsRegular() && stat.Size() > 0
}

// Columns returns the names of the top level columns stored in path.
func Columns(path string) (map[string]struct{}, error) {
	o := make(map[string]struct{})
	err := inspect(path, func(f *parquet.File) {
		for _, field := range f.Schema().Fields() {
			o[field.Name()] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Rows returns the number of rows stored in path, read from the footer.
func Rows(path string) (int64, error) {
	var n int64
	err := inspect(path, func(f *parquet.File) { n = f.NumRows() })
	return n, err
}

func inspect(path string, fn func(*parquet.File)) error {
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
		return err
	}
	fn(r)
	return nil
}
