// Package scoped stores photos as plain files in the app-scoped directory
// resolved by the naming package. Locators are file-scheme and metadata is
// embedded directly against the filesystem path.
package scoped

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nir0k/photokeep/internal/exifmeta"
	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/naming"
	"github.com/nir0k/photokeep/internal/storage"
	"github.com/nir0k/photokeep/internal/tasks"
)

// Fixed allow-list used when enumerating the root directory. Filenames are
// timestamp-prefixed, so a descending name sort is a descending capture sort.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

type Backend struct {
	gen     *naming.Generator
	runner  *tasks.Runner
	timeout time.Duration
}

func New(gen *naming.Generator, runner *tasks.Runner, singleFileTimeout time.Duration) *Backend {
	return &Backend{
		gen:     gen,
		runner:  runner,
		timeout: singleFileTimeout,
	}
}

func (b *Backend) Name() string { return "scoped" }

func (b *Backend) Write(ctx context.Context, c *media.Capture) (storage.Locator, error) {
	const op = "write photo"
	if c.Format != media.FormatJPEG {
		return storage.Locator{}, storage.Errorf(storage.KindFormatNotSupported, op,
			"format %q is not supported", c.Format)
	}

	path, err := tasks.Await(ctx, b.runner, op, b.timeout, func(ctx context.Context) (string, error) {
		target := b.gen.Generate()
		if err := writeFileAtomic(target, c.JPEGBytes()); err != nil {
			return "", err
		}
		return target, nil
	})
	if err != nil {
		return storage.Locator{}, storage.E(storage.KindWriteFailed, op, err)
	}
	return storage.FileLocator(path), nil
}

func (b *Backend) Save(ctx context.Context, md media.Metadata, loc storage.Locator) error {
	const op = "save metadata"
	if loc.Scheme != storage.SchemeFile {
		return storage.Errorf(storage.KindSaveFailed, op, "unsupported locator %s", loc)
	}

	err := tasks.AwaitErr(ctx, b.runner, op, b.timeout, func(ctx context.Context) error {
		return embedInFile(loc.Ref, md)
	})
	if err != nil {
		return storage.E(storage.KindSaveFailed, op, err)
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, loc storage.Locator) (media.Metadata, error) {
	const op = "read metadata"
	if loc.Scheme != storage.SchemeFile {
		return media.Metadata{}, storage.Errorf(storage.KindReadFailed, op, "unsupported locator %s", loc)
	}

	md, err := tasks.Await(ctx, b.runner, op, b.timeout, func(ctx context.Context) (media.Metadata, error) {
		data, err := os.ReadFile(loc.Ref)
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
	root := b.gen.RootDirectory()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, storage.E(storage.KindGalleryAccess, op, err)
	}

	var names []string
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, storage.E(storage.KindGalleryAccess, op, ctx.Err())
		default:
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if !allowedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	locators := make([]storage.Locator, 0, len(names))
	for _, name := range names {
		locators = append(locators, storage.FileLocator(filepath.Join(root, name)))
	}
	return locators, nil
}

func (b *Backend) Delete(ctx context.Context, loc storage.Locator) error {
	const op = "delete photo"
	if loc.Scheme != storage.SchemeFile {
		return storage.Errorf(storage.KindGalleryDelete, op, "unsupported locator %s", loc)
	}
	if err := os.Remove(loc.Ref); err != nil {
		if os.IsNotExist(err) {
			return storage.Errorf(storage.KindGalleryDelete, op, "no file was removed for %s", loc)
		}
		return storage.E(storage.KindGalleryDelete, op, err)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	if loc.Scheme != storage.SchemeFile {
		return nil, fmt.Errorf("open %s: unsupported locator scheme", loc)
	}
	return os.Open(loc.Ref)
}

func (b *Backend) DisplayName(ctx context.Context, loc storage.Locator) (string, error) {
	if loc.Scheme != storage.SchemeFile {
		return "", fmt.Errorf("display name for %s: unsupported locator scheme", loc)
	}
	return filepath.Base(loc.Ref), nil
}

func (b *Backend) Close() error { return nil }

func embedInFile(path string, md media.Metadata) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := exifmeta.Embed(data, md)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, out)
}

// writeFileAtomic stages the bytes in the target directory and renames them
// into place so a failure never leaves a partially-written artifact visible.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}
