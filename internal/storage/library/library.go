// Package library stores photos through the shared media catalog. Rows are
// addressed by content-scheme locators and their bytes are only reachable as
// streams, so metadata edits go through a staged temp file.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nir0k/photokeep/internal/catalog"
	"github.com/nir0k/photokeep/internal/exifmeta"
	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/naming"
	"github.com/nir0k/photokeep/internal/storage"
	"github.com/nir0k/photokeep/internal/tasks"
)

const (
	// Owner marks catalog rows created by this application.
	Owner = "photokeep"

	mimeJPEG     = "image/jpeg"
	relativePath = "Pictures/" + naming.Volume
)

type Backend struct {
	cat     *catalog.Catalog
	gen     *naming.Generator
	runner  *tasks.Runner
	timeout time.Duration
}

// New builds the catalog-backed backend. A nil catalog is accepted and makes
// every write report the missing capability instead of panicking.
func New(cat *catalog.Catalog, gen *naming.Generator, runner *tasks.Runner, singleFileTimeout time.Duration) *Backend {
	return &Backend{
		cat:     cat,
		gen:     gen,
		runner:  runner,
		timeout: singleFileTimeout,
	}
}

func (b *Backend) Name() string { return "library" }

func (b *Backend) Write(ctx context.Context, c *media.Capture) (storage.Locator, error) {
	const op = "write photo"
	if c.Format != media.FormatJPEG {
		return storage.Locator{}, storage.Errorf(storage.KindFormatNotSupported, op,
			"format %q is not supported", c.Format)
	}
	if b.cat == nil {
		return storage.Locator{}, storage.Errorf(storage.KindWriteFailed, op, "media catalog is unavailable")
	}

	id, err := tasks.Await(ctx, b.runner, op, b.timeout, func(ctx context.Context) (string, error) {
		name := b.gen.Filename()
		e, err := b.cat.Insert(catalog.Entry{
			Title:        strings.TrimSuffix(name, naming.Extension),
			DisplayName:  name,
			MIME:         mimeJPEG,
			RelativePath: relativePath,
			Owner:        Owner,
			TakenAt:      c.TakenAt,
		})
		if err != nil {
			return "", err
		}
		if err := b.writeContent(e.ID, c.JPEGBytes()); err != nil {
			b.cat.Delete(e.ID)
			return "", err
		}
		return e.ID, nil
	})
	if err != nil {
		return storage.Locator{}, storage.E(storage.KindWriteFailed, op, err)
	}
	return storage.ContentLocator(id), nil
}

func (b *Backend) Save(ctx context.Context, md media.Metadata, loc storage.Locator) error {
	const op = "save metadata"
	id, err := b.entryID(loc)
	if err != nil {
		return storage.E(storage.KindSaveFailed, op, err)
	}

	err = tasks.AwaitErr(ctx, b.runner, op, b.timeout, func(ctx context.Context) error {
		tmp, err := b.stageForEdit(id)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)

		data, err := os.ReadFile(tmp)
		if err != nil {
			return err
		}
		out, err := exifmeta.Embed(data, md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(tmp, out, 0o600); err != nil {
			return err
		}
		return b.commitStagedEdit(id, tmp)
	})
	if err != nil {
		return storage.E(storage.KindSaveFailed, op, err)
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, loc storage.Locator) (media.Metadata, error) {
	const op = "read metadata"
	id, err := b.entryID(loc)
	if err != nil {
		return media.Metadata{}, storage.E(storage.KindReadFailed, op, err)
	}

	md, err := tasks.Await(ctx, b.runner, op, b.timeout, func(ctx context.Context) (media.Metadata, error) {
		rc, err := b.cat.OpenRead(id)
		if err != nil {
			return media.Metadata{}, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return media.Metadata{}, err
		}
		return exifmeta.Extract(data)
	})
	if err != nil {
		return media.Metadata{}, storage.E(storage.KindReadFailed, op, err)
	}
	return md, nil
}

func (b *Backend) List(ctx context.Context) ([]storage.Locator, error) {
	const op = "list photos"
	if b.cat == nil {
		return nil, storage.Errorf(storage.KindGalleryAccess, op, "media catalog is unavailable")
	}
	select {
	case <-ctx.Done():
		return nil, storage.E(storage.KindGalleryAccess, op, ctx.Err())
	default:
	}

	entries, err := b.cat.Query(Owner)
	if err != nil {
		return nil, storage.E(storage.KindGalleryAccess, op, err)
	}
	locators := make([]storage.Locator, 0, len(entries))
	for _, e := range entries {
		locators = append(locators, storage.ContentLocator(e.ID))
	}
	return locators, nil
}

func (b *Backend) Delete(ctx context.Context, loc storage.Locator) error {
	const op = "delete photo"
	id, err := b.entryID(loc)
	if err != nil {
		return storage.E(storage.KindGalleryDelete, op, err)
	}
	n, err := b.cat.Delete(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return storage.Errorf(storage.KindGalleryDelete, op, "no rows were removed for %s", loc)
		}
		return storage.E(storage.KindGalleryDelete, op, err)
	}
	if n == 0 {
		return storage.Errorf(storage.KindGalleryDelete, op, "no rows were removed for %s", loc)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	id, err := b.entryID(loc)
	if err != nil {
		return nil, err
	}
	return b.cat.OpenRead(id)
}

func (b *Backend) DisplayName(ctx context.Context, loc storage.Locator) (string, error) {
	id, err := b.entryID(loc)
	if err != nil {
		return "", err
	}
	e, err := b.cat.Get(id)
	if err != nil {
		return "", err
	}
	return e.DisplayName, nil
}

func (b *Backend) Close() error {
	if b.cat == nil {
		return nil
	}
	return b.cat.Close()
}

func (b *Backend) entryID(loc storage.Locator) (string, error) {
	if loc.Scheme != storage.SchemeContent {
		return "", fmt.Errorf("unsupported locator %s", loc)
	}
	if b.cat == nil {
		return "", fmt.Errorf("media catalog is unavailable")
	}
	return loc.Ref, nil
}

// StageForEdit copies a row's content into a private temp file so it can be
// edited in place. The caller owns the returned path until it is committed
// back with CommitStagedEdit or removed.
func (b *Backend) StageForEdit(ctx context.Context, loc storage.Locator) (string, error) {
	id, err := b.entryID(loc)
	if err != nil {
		return "", err
	}
	return b.stageForEdit(id)
}

// CommitStagedEdit streams a staged temp file back over the row's content and
// removes the temp file.
func (b *Backend) CommitStagedEdit(ctx context.Context, loc storage.Locator, path string) error {
	id, err := b.entryID(loc)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return b.commitStagedEdit(id, path)
}

func (b *Backend) stageForEdit(id string) (string, error) {
	rc, err := b.cat.OpenRead(id)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	path := filepath.Join(os.TempDir(), "photokeep-edit-"+uuid.NewString()+naming.Extension)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage catalog content %s: %w", id, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage catalog content %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage catalog content %s: %w", id, err)
	}
	return path, nil
}

func (b *Backend) commitStagedEdit(id, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read staged content %s: %w", id, err)
	}
	return b.writeContent(id, data)
}

func (b *Backend) writeContent(id string, data []byte) error {
	w, err := b.cat.OpenWrite(id)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Discard()
		return err
	}
	return w.Close()
}
