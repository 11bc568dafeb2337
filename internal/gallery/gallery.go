// Package gallery enumerates stored photos through a backend. It owns no
// persistent state; every call re-queries the backing store off the calling
// goroutine with the multi-file timeout.
package gallery

import (
	"context"
	"time"

	"github.com/nir0k/photokeep/internal/storage"
	"github.com/nir0k/photokeep/internal/tasks"
)

// Index drops rows for files that no longer exist. Only file-scheme locators
// are reported; catalog-backed rows disappear together with their content.
type Index interface {
	FileRemoved(ctx context.Context, path string) error
}

type Manager struct {
	backend storage.Backend
	index   Index
	runner  *tasks.Runner
	timeout time.Duration
	warnf   func(string, ...interface{})
}

// New builds a Manager. index may be nil when no external media index is
// kept. warnf may be nil.
func New(backend storage.Backend, index Index, runner *tasks.Runner, multiFileTimeout time.Duration, warnf func(string, ...interface{})) *Manager {
	if warnf == nil {
		warnf = func(string, ...interface{}) {}
	}
	return &Manager{
		backend: backend,
		index:   index,
		runner:  runner,
		timeout: multiFileTimeout,
		warnf:   warnf,
	}
}

// List returns every stored photo, newest capture first.
func (m *Manager) List(ctx context.Context) ([]storage.Locator, error) {
	locators, err := tasks.Await(ctx, m.runner, "list gallery", m.timeout, m.backend.List)
	if err != nil {
		if storage.HasKind(err, storage.KindGalleryAccess) {
			return nil, err
		}
		return nil, storage.E(storage.KindGalleryAccess, "list gallery", err)
	}
	return locators, nil
}

func (m *Manager) IsEmpty(ctx context.Context) (bool, error) {
	locators, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	return len(locators) == 0, nil
}

// Latest returns the most recently captured photo, or false when the
// gallery is empty.
func (m *Manager) Latest(ctx context.Context) (storage.Locator, bool, error) {
	locators, err := m.List(ctx)
	if err != nil {
		return storage.Locator{}, false, err
	}
	if len(locators) == 0 {
		return storage.Locator{}, false, nil
	}
	return locators[0], true, nil
}

// Delete removes the backing artifact. Zero items removed is a failure, not
// a silent no-op. An index-notification failure after a successful removal
// is logged, never surfaced.
func (m *Manager) Delete(ctx context.Context, loc storage.Locator) error {
	err := tasks.AwaitErr(ctx, m.runner, "delete photo", m.timeout, func(ctx context.Context) error {
		return m.backend.Delete(ctx, loc)
	})
	if err != nil {
		if storage.HasKind(err, storage.KindGalleryDelete) {
			return err
		}
		return storage.E(storage.KindGalleryDelete, "delete photo", err)
	}
	if m.index != nil && loc.Scheme == storage.SchemeFile {
		if err := m.index.FileRemoved(ctx, loc.Ref); err != nil {
			m.warnf("media index not updated after delete of %s: %v", loc, err)
		}
	}
	return nil
}
