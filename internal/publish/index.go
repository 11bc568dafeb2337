// Package publish makes freshly stored photos discoverable: it keeps the
// media index in step with file-backed writes and optionally hands artifacts
// to the upload endpoint. Everything here is advisory; storage stays
// authoritative when any of it fails.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nir0k/photokeep/internal/catalog"
)

// IndexOwner marks catalog rows maintained by the media index rather than
// the library backend.
const IndexOwner = "media-index"

var indexedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// Index mirrors an OS media index for files that live outside the managed
// catalog content directory, keyed by source path.
type Index interface {
	FileAdded(ctx context.Context, path string) error
	FileRemoved(ctx context.Context, path string) error
	Rescan(ctx context.Context, dir string) (added, removed int, err error)
}

// CatalogIndex keeps index rows in the shared media catalog.
type CatalogIndex struct {
	cat *catalog.Catalog
}

func NewCatalogIndex(cat *catalog.Catalog) *CatalogIndex {
	return &CatalogIndex{cat: cat}
}

// FileAdded upserts the row for a file path. The capture timestamp comes
// from the file's modification time.
func (ci *CatalogIndex) FileAdded(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat indexed file: %w", err)
	}

	existing, ok, err := ci.cat.FindBySource(path)
	if err != nil {
		return err
	}
	if ok {
		existing.TakenAt = info.ModTime().UTC()
		existing.Size = info.Size()
		return ci.cat.Update(existing)
	}

	name := filepath.Base(path)
	_, err = ci.cat.Insert(catalog.Entry{
		Title:       strings.TrimSuffix(name, filepath.Ext(name)),
		DisplayName: name,
		MIME:        "image/jpeg",
		Owner:       IndexOwner,
		TakenAt:     info.ModTime().UTC(),
		Size:        info.Size(),
		SourcePath:  path,
	})
	return err
}

// FileRemoved drops the row for a file path. A path that was never indexed
// is not an error.
func (ci *CatalogIndex) FileRemoved(ctx context.Context, path string) error {
	e, ok, err := ci.cat.FindBySource(path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	_, err = ci.cat.Delete(e.ID)
	return err
}

// Rescan walks a directory, upserts rows for the image files it finds and
// drops rows whose source files under that directory are gone.
func (ci *CatalogIndex) Rescan(ctx context.Context, dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("scan media directory: %w", err)
	}

	present := map[string]bool{}
	added := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return added, 0, ctx.Err()
		default:
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if !indexedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		present[path] = true
		_, known, err := ci.cat.FindBySource(path)
		if err != nil {
			return added, 0, err
		}
		if err := ci.FileAdded(ctx, path); err != nil {
			return added, 0, err
		}
		if !known {
			added++
		}
	}

	rows, err := ci.cat.Query(IndexOwner)
	if err != nil {
		return added, 0, err
	}
	removed := 0
	for _, row := range rows {
		if row.SourcePath == "" || filepath.Dir(row.SourcePath) != dir {
			continue
		}
		if present[row.SourcePath] {
			continue
		}
		if _, err := ci.cat.Delete(row.ID); err != nil {
			return added, removed, err
		}
		removed++
	}
	return added, removed, nil
}
