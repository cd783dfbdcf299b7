// Package jsonfile implements the domain repositories on top of flat JSON
// array files, one file per collection.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
)

// Collection is a JSON array file of T. Every mutation reads the whole array,
// modifies it and rewrites the file; a mutex serializes cycles within the
// process.
type Collection[T any] struct {
	path string
	mu   sync.Mutex
}

// NewCollection returns a collection stored at path. The file is created on
// first write.
func NewCollection[T any](path string) *Collection[T] {
	return &Collection[T]{path: path}
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// All returns a snapshot of every record.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Mutate runs fn over the current records and writes back what it returns.
// When fn fails the file is left untouched.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return c.store(items)
}

// Replace overwrites the collection with items.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	return c.Mutate(ctx, func([]T) ([]T, error) {
		return items, nil
	})
}

func (c *Collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", c.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "decode %s", c.path)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// store writes through a temp file in the same directory and renames it over
// the target so readers never see a partial array.
func (c *Collection[T]) store(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode collection")
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return errors.Wrapf(err, "replace %s", c.path)
	}
	return nil
}
