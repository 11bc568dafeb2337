package library

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nir0k/photokeep/internal/catalog"
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
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testBackend(t *testing.T, now func() time.Time) *Backend {
	t.Helper()
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	b := New(cat, naming.New(nil, t.TempDir(), now), tasks.NewRunner(t.Logf), 10*time.Second)
	t.Cleanup(func() { b.Close() })
	return b
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWriteCreatesCatalogRow(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 250*int(time.Millisecond), time.UTC)
	b := testBackend(t, fixedClock(taken))
	data := testJPEG(t)

	loc, err := b.Write(context.Background(), media.NewJPEGCapture(data, media.FacingBack, taken, nil))
	require.NoError(t, err)
	require.Equal(t, storage.SchemeContent, loc.Scheme)

	name, err := b.DisplayName(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "PK_2026-08-31-10-15-30-250.jpg", name)

	rc, err := b.Open(context.Background(), loc)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestWriteRejectsNonJPEG(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b := testBackend(t, fixedClock(taken))

	c := &media.Capture{Format: media.FormatYUV420, Facing: media.FacingBack, TakenAt: taken}
	_, err := b.Write(context.Background(), c)
	require.True(t, storage.HasKind(err, storage.KindFormatNotSupported))

	locators, err := b.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, locators)
}

func TestWriteWithoutCatalog(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b := New(nil, naming.New(nil, t.TempDir(), fixedClock(taken)), tasks.NewRunner(t.Logf), time.Second)

	_, err := b.Write(context.Background(), media.NewJPEGCapture(testJPEG(t), media.FacingBack, taken, nil))
	require.True(t, storage.HasKind(err, storage.KindWriteFailed))
}

func TestSaveReadRoundTrip(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b := testBackend(t, fixedClock(taken))
	ctx := context.Background()

	loc, err := b.Write(ctx, media.NewJPEGCapture(testJPEG(t), media.FacingFront, taken, nil))
	require.NoError(t, err)

	md := media.Metadata{
		Description: "shared shelf",
		Location: &media.Location{
			Latitude:  -33.8688,
			Longitude: 151.2093,
			Altitude:  58,
			Provider:  "fused",
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

func TestListNewestFirst(t *testing.T) {
	clock := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	b := testBackend(t, func() time.Time { return clock })
	ctx := context.Background()
	data := testJPEG(t)

	first, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, clock, nil))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	second, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, clock, nil))
	require.NoError(t, err)

	locators, err := b.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []storage.Locator{second, first}, locators)
}

func TestDelete(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b := testBackend(t, fixedClock(taken))
	ctx := context.Background()

	loc, err := b.Write(ctx, media.NewJPEGCapture(testJPEG(t), media.FacingBack, taken, nil))
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, loc))
	err = b.Delete(ctx, loc)
	require.True(t, storage.HasKind(err, storage.KindGalleryDelete))
}

func TestStagedEditLifecycle(t *testing.T) {
	taken := time.Date(2026, 8, 31, 10, 15, 30, 0, time.UTC)
	b := testBackend(t, fixedClock(taken))
	ctx := context.Background()
	data := testJPEG(t)

	loc, err := b.Write(ctx, media.NewJPEGCapture(data, media.FacingBack, taken, nil))
	require.NoError(t, err)

	tmp, err := b.StageForEdit(ctx, loc)
	require.NoError(t, err)
	staged, err := os.ReadFile(tmp)
	require.NoError(t, err)
	require.Equal(t, data, staged)

	edited := testJPEG(t)
	require.NoError(t, os.WriteFile(tmp, edited, 0o600))
	require.NoError(t, b.CommitStagedEdit(ctx, loc, tmp))

	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))

	rc, err := b.Open(ctx, loc)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, edited, got)
}

func TestReadRejectsFileLocator(t *testing.T) {
	b := testBackend(t, time.Now)
	_, err := b.Read(context.Background(), storage.FileLocator("/tmp/x.jpg"))
	require.True(t, storage.HasKind(err, storage.KindReadFailed))
}
