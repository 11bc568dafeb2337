// Package photo is the in-memory aggregate binding a stored artifact to its
// backend. It caches the last metadata known to match the backing store.
package photo

import (
	"context"
	"io"

	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/storage"
)

// Notifier is told about a freshly stored photo. Publication is advisory:
// a notifier failure never rolls the stored artifact back.
type Notifier interface {
	Published(ctx context.Context, loc storage.Locator) error
}

// Photo is always persisted; construction fails rather than returning an
// entity without a backing artifact. Callers invoke operations on a single
// Photo sequentially; there is no internal locking.
type Photo struct {
	backend storage.Backend
	loc     storage.Locator
	md      media.Metadata
}

// Capture persists a fresh capture and returns its entity. The initial
// metadata records the lens-mirroring flag and the capture location; it is
// embedded and read back so the cache reflects what the artifact actually
// carries. A back-lens capture without a fix has nothing to embed and skips
// the save. Any failing step aborts the whole creation.
func Capture(ctx context.Context, b storage.Backend, c *media.Capture) (*Photo, error) {
	loc, err := b.Write(ctx, c)
	if err != nil {
		return nil, err
	}
	initial := media.Metadata{
		Location: c.Location,
		Reversed: c.Facing == media.FacingFront,
	}
	if !initial.Empty() {
		if err := b.Save(ctx, initial, loc); err != nil {
			return nil, err
		}
	}
	md, err := b.Read(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &Photo{backend: b, loc: loc, md: md}, nil
}

// Open wraps an already stored artifact, reading its embedded metadata. A
// read failure means no entity is returned.
func Open(ctx context.Context, b storage.Backend, loc storage.Locator) (*Photo, error) {
	md, err := b.Read(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &Photo{backend: b, loc: loc, md: md}, nil
}

func (p *Photo) Locator() storage.Locator { return p.loc }

// Metadata returns the cached metadata, which matches the backing store as
// of the last successful Capture, Open, UpdateMetadata or Refresh.
func (p *Photo) Metadata() media.Metadata { return p.md }

// UpdateMetadata embeds md into the artifact. The cache is replaced only
// after the save succeeds; on failure it keeps its pre-call value.
func (p *Photo) UpdateMetadata(ctx context.Context, md media.Metadata) error {
	if err := p.backend.Save(ctx, md, p.loc); err != nil {
		return err
	}
	p.md = md
	return nil
}

// SetDescription updates the description while keeping location and the
// mirroring flag intact.
func (p *Photo) SetDescription(ctx context.Context, description string) error {
	md := p.md
	md.Description = description
	return p.UpdateMetadata(ctx, md)
}

// Refresh re-reads the embedded metadata from the backing store.
func (p *Photo) Refresh(ctx context.Context) error {
	md, err := p.backend.Read(ctx, p.loc)
	if err != nil {
		return err
	}
	p.md = md
	return nil
}

// Publish hands the stored artifact to the notifier. A nil notifier is a
// no-op. Errors are surfaced to the caller but the photo stays stored.
func (p *Photo) Publish(ctx context.Context, n Notifier) error {
	if n == nil {
		return nil
	}
	return n.Published(ctx, p.loc)
}

func (p *Photo) DisplayName(ctx context.Context) (string, error) {
	return p.backend.DisplayName(ctx, p.loc)
}

// Content opens the artifact's byte stream.
func (p *Photo) Content(ctx context.Context) (io.ReadCloser, error) {
	return p.backend.Open(ctx, p.loc)
}
