package location

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nir0k/photokeep/internal/media"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <trkseg>
      <trkpt lat="59.4370" lon="24.7536">
        <ele>10.0</ele>
        <time>2026-08-31T10:00:00Z</time>
      </trkpt>
      <trkpt lat="59.4380" lon="24.7556">
        <ele>14.0</ele>
        <time>2026-08-31T10:00:20Z</time>
      </trkpt>
      <trkpt lat="59.4390" lon="24.7576">
        <ele>18.0</ele>
        <time>2026-08-31T10:00:40Z</time>
      </trkpt>
    </trkseg>
  </trk>
</gpx>`

func writeTrack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walk.gpx")
	require.NoError(t, os.WriteFile(path, []byte(sampleGPX), 0o644))
	return path
}

func TestLoadTrack(t *testing.T) {
	track, err := LoadTrack(writeTrack(t))
	require.NoError(t, err)
	require.Equal(t, 3, track.PointCount())

	first, last := track.Bounds()
	require.Equal(t, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), first)
	require.Equal(t, time.Date(2026, 8, 31, 10, 0, 40, 0, time.UTC), last)
}

func TestLocateInterpolates(t *testing.T) {
	track, err := LoadTrack(writeTrack(t))
	require.NoError(t, err)

	loc, err := track.Locate(time.Date(2026, 8, 31, 10, 0, 10, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, loc)
	require.InDelta(t, 59.4375, loc.Latitude, 1e-6)
	require.InDelta(t, 24.7546, loc.Longitude, 1e-6)
	require.InDelta(t, 12.0, loc.Altitude, 1e-6)
	require.Greater(t, loc.Speed, 0.0)
	require.Equal(t, "gpx", loc.Provider)
}

func TestLocateExactPoint(t *testing.T) {
	track, err := LoadTrack(writeTrack(t))
	require.NoError(t, err)

	loc, err := track.Locate(time.Date(2026, 8, 31, 10, 0, 20, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, loc)
	require.InDelta(t, 59.4380, loc.Latitude, 1e-6)
	require.InDelta(t, 24.7556, loc.Longitude, 1e-6)
}

func TestLocateOutsideCoverageIsNoFix(t *testing.T) {
	track, err := LoadTrack(writeTrack(t))
	require.NoError(t, err)

	loc, err := track.Locate(time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Nil(t, loc)
}

func TestFixedProvider(t *testing.T) {
	f := Fixed{Loc: media.Location{Latitude: 38.9, Longitude: -77.0}}
	loc, err := f.Locate(time.Now())
	require.NoError(t, err)
	require.NotNil(t, loc)
	require.Equal(t, "fixed", loc.Provider)
	require.InDelta(t, 38.9, loc.Latitude, 1e-9)
}

func TestNoneProvider(t *testing.T) {
	loc, err := None{}.Locate(time.Now())
	require.NoError(t, err)
	require.Nil(t, loc)
}
