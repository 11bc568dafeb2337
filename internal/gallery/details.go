package gallery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/evanoberholster/imagemeta/exif2"
	"golang.org/x/sync/errgroup"

	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/storage"
)

// detailWorkers bounds concurrent per-photo decodes during Details.
const detailWorkers = 4

// Detail is a per-photo summary for gallery browsing: the embedded metadata
// plus camera fields pulled from the raw EXIF block.
type Detail struct {
	Locator     storage.Locator
	DisplayName string
	Metadata    media.Metadata
	CaptureTime time.Time
	CameraMake  string
	CameraModel string
}

// Details lists the gallery and decodes a summary for every photo. Decodes
// run concurrently; the first failure aborts the enumeration.
func (m *Manager) Details(ctx context.Context) ([]Detail, error) {
	locators, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	details := make([]Detail, len(locators))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailWorkers)
	for i, loc := range locators {
		g.Go(func() error {
			d, err := m.detail(gctx, loc)
			if err != nil {
				return err
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storage.E(storage.KindGalleryAccess, "enumerate details", err)
	}
	return details, nil
}

func (m *Manager) detail(ctx context.Context, loc storage.Locator) (Detail, error) {
	md, err := m.backend.Read(ctx, loc)
	if err != nil {
		return Detail{}, err
	}
	name, err := m.backend.DisplayName(ctx, loc)
	if err != nil {
		return Detail{}, err
	}

	d := Detail{Locator: loc, DisplayName: name, Metadata: md}

	rc, err := m.backend.Open(ctx, loc)
	if err != nil {
		return Detail{}, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Detail{}, err
	}

	ex, err := decodeExifSafe(data, loc)
	if err != nil {
		// Camera fields are best effort; photos written without a capture
		// device still enumerate.
		m.warnf("no exif summary for %s: %v", loc, err)
		return d, nil
	}
	ts := ex.DateTimeOriginal()
	if ts.IsZero() {
		ts = ex.CreateDate()
	}
	d.CaptureTime = ts
	d.CameraMake = ex.Make
	d.CameraModel = ex.Model
	return d, nil
}

// decodeExifSafe protects against panics from the decoder on malformed
// files.
func decodeExifSafe(data []byte, loc storage.Locator) (ex exif2.Exif, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while decoding %s: %v", loc, rec)
		}
	}()

	ex, err = imagemeta.Decode(bytes.NewReader(data))
	return ex, err
}
