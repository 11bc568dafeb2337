// Package catalog is the shared media catalog: a registry of media rows in a
// badger database beside a managed content directory. Content is reachable
// only through catalog streams, never by path, which is what forces the
// library codec into its staged-edit pattern.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound signals that no row exists for the requested ID.
var ErrNotFound = errors.New("catalog entry not found")

const entryKeyPrefix = "entry/"

// Entry is one catalog row.
type Entry struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	DisplayName  string    `json:"display_name"`
	MIME         string    `json:"mime"`
	RelativePath string    `json:"relative_path"`
	Owner        string    `json:"owner"`
	TakenAt      time.Time `json:"taken_at"`
	AddedAt      time.Time `json:"added_at"`
	Size         int64     `json:"size"`
	// SourcePath is set for rows registered by the media-index rescan for
	// files that live outside the managed content directory.
	SourcePath string `json:"source_path,omitempty"`
}

// Catalog owns the badger index and the managed content directory.
type Catalog struct {
	root string
	db   *badger.DB
	mu   sync.RWMutex
}

func Open(root string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Join(root, "content"), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog content directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(root, "index"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog index: %w", err)
	}

	return &Catalog{root: root, db: db}, nil
}

func (c *Catalog) contentPath(e Entry) string {
	if e.SourcePath != "" {
		return e.SourcePath
	}
	return filepath.Join(c.root, "content", e.ID)
}

func entryKey(id string) []byte {
	return []byte(entryKeyPrefix + id)
}

func (c *Catalog) putEntry(txn *badger.Txn, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal catalog entry: %w", err)
	}
	return txn.Set(entryKey(e.ID), data)
}

func (c *Catalog) getEntry(txn *badger.Txn, id string) (Entry, error) {
	item, err := txn.Get(entryKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Entry{}, err
	}
	var e Entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	return e, err
}

// Insert registers a new row and returns it with its assigned ID. The
// content stream is written separately through OpenWrite.
func (c *Catalog) Insert(e Entry) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return c.putEntry(txn, e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("insert catalog entry: %w", err)
	}
	return e, nil
}

// Update replaces an existing row.
func (c *Catalog) Update(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(txn *badger.Txn) error {
		if _, err := c.getEntry(txn, e.ID); err != nil {
			return err
		}
		return c.putEntry(txn, e)
	})
}

// Get returns the row for an ID.
func (c *Catalog) Get(id string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = c.getEntry(txn, id)
		return err
	})
	return e, err
}

// OpenRead opens the content stream for a row.
func (c *Catalog) OpenRead(id string) (io.ReadCloser, error) {
	e, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(c.contentPath(e))
	if err != nil {
		return nil, fmt.Errorf("open catalog content %s: %w", id, err)
	}
	return f, nil
}

// Writer is a truncating content stream for a catalog row. Close commits the
// bytes atomically and records the new size on the row; Discard abandons the
// write leaving the previous content intact.
type Writer struct {
	cat   *Catalog
	id    string
	tmp   *os.File
	final string
	size  int64
	done  bool
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.tmp.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("close catalog content stream: %w", err)
	}
	if err := os.Rename(w.tmp.Name(), w.final); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("commit catalog content: %w", err)
	}
	return w.cat.recordSize(w.id, w.size)
}

func (w *Writer) Discard() {
	if w.done {
		return
	}
	w.done = true
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}

// OpenWrite opens a truncating content stream for a row.
func (c *Catalog) OpenWrite(id string) (*Writer, error) {
	e, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if e.SourcePath != "" {
		return nil, fmt.Errorf("catalog row %s points at external content", id)
	}
	final := c.contentPath(e)
	tmp, err := os.CreateTemp(filepath.Dir(final), ".partial-*")
	if err != nil {
		return nil, fmt.Errorf("open catalog content stream: %w", err)
	}
	return &Writer{cat: c, id: id, tmp: tmp, final: final}, nil
}

func (c *Catalog) recordSize(id string, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(txn *badger.Txn) error {
		e, err := c.getEntry(txn, id)
		if err != nil {
			return err
		}
		e.Size = size
		return c.putEntry(txn, e)
	})
}

// Query returns the rows belonging to an owner, newest capture first.
func (c *Catalog) Query(owner string) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []Entry
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if owner != "" && e.Owner != owner {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].TakenAt.Equal(entries[j].TakenAt) {
			return entries[i].TakenAt.After(entries[j].TakenAt)
		}
		if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].AddedAt.After(entries[j].AddedAt)
		}
		return entries[i].DisplayName > entries[j].DisplayName
	})
	return entries, nil
}

// FindBySource looks up the row registered for an external file path.
func (c *Catalog) FindBySource(path string) (Entry, bool, error) {
	entries, err := c.Query("")
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.SourcePath == path {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Delete removes a row and its managed content file, reporting how many rows
// were removed. Deleting a missing row removes zero rows and is not an
// error at this layer.
func (c *Catalog) Delete(id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var e Entry
	found := true
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = c.getEntry(txn, id)
		if errors.Is(err, ErrNotFound) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("look up catalog entry: %w", err)
	}
	if !found {
		return 0, nil
	}

	if e.SourcePath == "" {
		if err := os.Remove(c.contentPath(e)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove catalog content: %w", err)
		}
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(id))
	})
	if err != nil {
		return 0, fmt.Errorf("delete catalog entry: %w", err)
	}
	return 1, nil
}

func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
