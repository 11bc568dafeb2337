package scoped

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nir0k/photokeep/internal/media"
	"github.com/nir0k/photokeep/internal/naming"
	"github.com/nir0k/photokeep/internal/storage"
	"github.com/nir0k/photokeep/internal/tasks"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testBackend(t *testing.T, now func() time.Time) (*Backend, string) {
	t.Helper()
	private := t.TempDir()
	gen := naming.New(nil, private, now)
	b := New(gen, tasks.NewRunner(t.Logf), 10*time.Second)
	return b, gen.RootDirectory()
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWriteCreatesFile(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 250*int(time.Millisecond), time.UTC)
	b, root := testBackend(t, fixedClock(taken))
	data := testJPEG(t)

	loc, err := b.Write(context.Background(), media.NewJPEGCapture(data, media.FacingBack, taken, nil))
	require.NoError(t, err)
	require.Equal(t, storage.SchemeFile, loc.Scheme)
	require.Equal(t, root, filepath.Dir(loc.Ref))
	require.Equal(t, "PK_2026-08-31-10-15-30-250.jpg", filepath.Base(loc.Ref))

	written, err := os.ReadFile(loc.Ref)
	require.NoError(t, err)
	require.Equal(t, data, written)
}

func TestWriteRejectsNonJPEGBeforeTouchingDisk(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b, root := testBackend(t, fixedClock(taken))

	c := &media.Capture{Format: media.FormatYUV420, Facing: media.FacingBack, TakenAt: taken}
	_, err := b.Write(context.Background(), c)
	require.True(t, storage.HasKind(err, storage.KindFormatNotSupported))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSaveReadRoundTrip(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b, _ := testBackend(t, fixedClock(taken))
	ctx := context.Background()

	loc, err := b.Write(ctx, media.NewJPEGCapture(testJPEG(t), media.FacingBack, taken, nil))
	require.NoError(t, err)

	md := media.Metadata{
		Description: "harbour at dusk",
		Location: &media.Location{
			Latitude:  59.437,
			Longitude: 24.7536,
			Altitude:  12,
			Speed:     1.5,
			Provider:  "gps",
		},
	}
	require.NoError(t, b.Save(ctx, md, loc))

	got, err := b.Read(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, md.Description, got.Description)
	require.NotNil(t, got.Location)
	require.InDelta(t, md.Location.Latitude, got.Location.Latitude, 1e-6)
	require.InDelta(t, md.Location.Longitude, got.Location.Longitude, 1e-6)
}

func TestReadMissingFile(t *testing.T) {
	b, _ := testBackend(t, time.Now)
	_, err := b.Read(context.Background(), storage.FileLocator("/does/not/exist.jpg"))
	require.True(t, storage.HasKind(err, storage.KindReadFailed))
}

func TestListNewestFirstAndFiltered(t *testing.T) {
	clock := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	b, root := testBackend(t, now)
	ctx := context.Background()
	data := testJPEG(t)

	first, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, clock, nil))
	require.NoError(t, err)
	second, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, clock, nil))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	locators, err := b.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []storage.Locator{second, first}, locators)
}

func TestDelete(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b, _ := testBackend(t, fixedClock(taken))
	ctx := context.Background()

	loc, err := b.Write(ctx, media.NewJPEGCapture(testJPEG(t), media.FacingBack, taken, nil))
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, loc))
	err = b.Delete(ctx, loc)
	require.True(t, storage.HasKind(err, storage.KindGalleryDelete))
}

func TestOpenAndDisplayName(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b, _ := testBackend(t, fixedClock(taken))
	ctx := context.Background()
	data := testJPEG(t)

	loc, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, taken, nil))
	require.NoError(t, err)

	name, err := b.DisplayName(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, "PK_2026-08-31-10-15-30-000.jpg", name)

	rc, err := b.Open(ctx, loc)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}
