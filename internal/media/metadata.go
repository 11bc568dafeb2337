package media

import (
	"fmt"
)

// Location carries the GPS fix supplied by the location collaborator at the
// moment of capture. Speed is in meters per second.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Speed     float64
	Provider  string
}

func (l *Location) String() string {
	if l == nil {
		return "<none>"
	}
	return fmt.Sprintf("lat=%.6f lon=%.6f alt=%.2f speed=%.2f provider=%s",
		l.Latitude, l.Longitude, l.Altitude, l.Speed, l.Provider)
}

// Metadata is the supplementary data embedded inside a photo artifact.
// It has no identity of its own; it is always recovered by re-parsing the
// stored photo.
type Metadata struct {
	Description string
	Location    *Location
	Reversed    bool
}

func (m Metadata) String() string {
	return fmt.Sprintf("description=%q reversed=%t location=[%s]", m.Description, m.Reversed, m.Location)
}

// Empty reports whether the metadata carries nothing worth embedding.
func (m Metadata) Empty() bool {
	return m.Description == "" && m.Location == nil && !m.Reversed
}
