package location

import (
	"fmt"
	"math"
	"sort"
	"time"

	gogpx "github.com/tkrajina/gpxgo/gpx"

	"github.com/nir0k/photokeep/internal/media"
)

const earthRadiusMeters = 6371000.0

// Track replays a recorded GPX track as a location provider. Points are
// kept sorted by timestamp; lookups interpolate between the neighbouring
// points and derive speed from their spacing.
type Track struct {
	points []trackPoint
}

type trackPoint struct {
	lat, lon float64
	altitude *float64
	time     time.Time
}

// LoadTrack parses a GPX file and prepares the lookup index.
func LoadTrack(path string) (*Track, error) {
	parsed, err := gogpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	collected := collectPoints(parsed)
	if len(collected) == 0 {
		return nil, fmt.Errorf("gpx file contains no track points")
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].time.Before(collected[j].time)
	})

	return &Track{points: collected}, nil
}

// Bounds returns the first and last timestamps covered by the track.
func (t *Track) Bounds() (time.Time, time.Time) {
	return t.points[0].time, t.points[len(t.points)-1].time
}

// PointCount returns the number of indexed GPX points.
func (t *Track) PointCount() int {
	return len(t.points)
}

// Locate interpolates a fix for the given moment. Outside the track's time
// coverage there is no fix, which is reported as nil rather than an error.
func (t *Track) Locate(at time.Time) (*media.Location, error) {
	target := at.UTC()
	if target.Before(t.points[0].time) || target.After(t.points[len(t.points)-1].time) {
		return nil, nil
	}

	idx := sort.Search(len(t.points), func(i int) bool {
		return !t.points[i].time.Before(target)
	})
	if idx == len(t.points) {
		idx = len(t.points) - 1
	}
	if t.points[idx].time.Equal(target) || idx == 0 {
		return t.fix(t.points[idx], t.speedAround(idx)), nil
	}

	prev := t.points[idx-1]
	next := t.points[idx]
	total := next.time.Sub(prev.time).Seconds()
	if total <= 0 {
		return t.fix(prev, t.speedAround(idx-1)), nil
	}

	progress := target.Sub(prev.time).Seconds() / total
	pt := trackPoint{
		lat:  prev.lat + progress*(next.lat-prev.lat),
		lon:  prev.lon + progress*(next.lon-prev.lon),
		time: target,
	}
	switch {
	case prev.altitude != nil && next.altitude != nil:
		v := *prev.altitude + progress*(*next.altitude-*prev.altitude)
		pt.altitude = &v
	case prev.altitude != nil:
		pt.altitude = prev.altitude
	case next.altitude != nil:
		pt.altitude = next.altitude
	}

	speed := segmentSpeed(prev, next)
	return t.fix(pt, speed), nil
}

func (t *Track) fix(pt trackPoint, speed float64) *media.Location {
	loc := &media.Location{
		Latitude:  pt.lat,
		Longitude: pt.lon,
		Speed:     speed,
		Provider:  "gpx",
	}
	if pt.altitude != nil {
		loc.Altitude = *pt.altitude
	}
	return loc
}

// speedAround derives speed at an exact point from the segment leading into
// it, falling back to the outgoing segment at the track start.
func (t *Track) speedAround(idx int) float64 {
	if idx > 0 {
		return segmentSpeed(t.points[idx-1], t.points[idx])
	}
	if len(t.points) > 1 {
		return segmentSpeed(t.points[0], t.points[1])
	}
	return 0
}

// segmentSpeed is the great-circle distance between two points over their
// time spacing, in meters per second.
func segmentSpeed(a, b trackPoint) float64 {
	dt := b.time.Sub(a.time).Seconds()
	if dt <= 0 {
		return 0
	}
	return haversineMeters(a.lat, a.lon, b.lat, b.lon) / dt
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func collectPoints(doc *gogpx.GPX) []trackPoint {
	points := make([]trackPoint, 0)

	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, pt := range segment.Points {
				point := trackPoint{
					lat:  pt.GetLatitude(),
					lon:  pt.GetLongitude(),
					time: pt.Timestamp.UTC(),
				}
				if ele := pt.GetElevation(); ele.NotNull() {
					val := ele.Value()
					point.altitude = &val
				}
				points = append(points, point)
			}
		}
	}

	return points
}
