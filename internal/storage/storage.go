// Package storage defines the backend capability contract shared by the
// scoped-directory and shared-catalog photo stores, and the locator type
// that identifies a stored photo regardless of backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nir0k/photokeep/internal/media"
)

// Scheme distinguishes the two locator shapes.
type Scheme string

const (
	// SchemeFile locates a photo by filesystem path (scoped backend).
	SchemeFile Scheme = "file"
	// SchemeContent locates a photo by catalog row ID (library backend).
	SchemeContent Scheme = "content"
)

// Locator is the opaque identity of a stored photo. For SchemeFile, Ref is
// an absolute path; for SchemeContent, Ref is a catalog row ID.
type Locator struct {
	Scheme Scheme
	Ref    string
}

func FileLocator(path string) Locator {
	return Locator{Scheme: SchemeFile, Ref: path}
}

func ContentLocator(id string) Locator {
	return Locator{Scheme: SchemeContent, Ref: id}
}

func (l Locator) String() string {
	switch l.Scheme {
	case SchemeFile:
		return "file://" + l.Ref
	case SchemeContent:
		return "content://media/" + l.Ref
	default:
		return l.Ref
	}
}

// ParseLocator inverts Locator.String. Bare strings without a scheme are
// treated as filesystem paths.
func ParseLocator(s string) (Locator, error) {
	switch {
	case strings.HasPrefix(s, "file://"):
		return FileLocator(strings.TrimPrefix(s, "file://")), nil
	case strings.HasPrefix(s, "content://media/"):
		id := strings.TrimPrefix(s, "content://media/")
		if id == "" {
			return Locator{}, fmt.Errorf("content locator %q has no ID", s)
		}
		return ContentLocator(id), nil
	case strings.HasPrefix(s, "content://"):
		return Locator{}, fmt.Errorf("unrecognized content locator %q", s)
	case s == "":
		return Locator{}, fmt.Errorf("empty locator")
	default:
		return FileLocator(s), nil
	}
}

// Backend is the storage capability: writing a freshly captured photo,
// embedding and recovering its metadata, and enumerating or deleting stored
// photos. One implementation is constructed at startup and injected
// everywhere a backend is needed; callers never branch on the backend kind.
//
// Write, Save and Read are bounded by the single-file timeout internally.
// List and Delete honor ctx and are bounded by their callers (the gallery
// applies the multi-file timeout).
type Backend interface {
	// Name identifies the backend ("scoped" or "library").
	Name() string

	// Write persists a captured JPEG and returns its locator. It fails with
	// KindFormatNotSupported before touching storage when the capture is not
	// JPEG, and with KindWriteFailed on I/O errors or timeout.
	Write(ctx context.Context, c *media.Capture) (Locator, error)

	// Save embeds metadata into the stored photo. Fails with KindSaveFailed.
	Save(ctx context.Context, md media.Metadata, loc Locator) error

	// Read recovers the embedded metadata. Fails with KindReadFailed.
	Read(ctx context.Context, loc Locator) (media.Metadata, error)

	// List returns locators for every stored photo, newest capture first.
	List(ctx context.Context) ([]Locator, error)

	// Delete removes the backing artifact. Removing nothing is an error,
	// not a no-op.
	Delete(ctx context.Context, loc Locator) error

	// Open returns the raw stored bytes for hand-off to collaborators.
	Open(ctx context.Context, loc Locator) (io.ReadCloser, error)

	// DisplayName returns the human-facing file name for a locator.
	DisplayName(ctx context.Context, loc Locator) (string, error)

	Close() error
}
