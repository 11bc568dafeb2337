package media

import (
	"bytes"
	"time"
)

// Format identifies the pixel format of a capture buffer.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatYUV420
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatYUV420:
		return "yuv420"
	default:
		return "unknown"
	}
}

// LensFacing records which lens produced a capture. Front-lens captures are
// mirrored and need a horizontal flip to display naturally.
type LensFacing int

const (
	FacingBack LensFacing = iota
	FacingFront
)

func (lf LensFacing) String() string {
	if lf == FacingFront {
		return "front"
	}
	return "back"
}

// Plane is one pixel plane of a capture buffer. The read position is part of
// the buffer state, so extraction must rewind before copying.
type Plane struct {
	data []byte
	pos  int
}

func NewPlane(data []byte) *Plane {
	return &Plane{data: data}
}

func (p *Plane) Rewind() {
	p.pos = 0
}

func (p *Plane) Capacity() int {
	return len(p.data)
}

// Copy rewinds the plane and copies out its entire backing region.
func (p *Plane) Copy() []byte {
	p.Rewind()
	out := make([]byte, len(p.data))
	n := copy(out, p.data)
	p.pos = n
	return out
}

// Capture is the raw buffer delivered by the capture collaborator, together
// with the lens flag and the best-effort location fix taken at shutter time.
// A NIL location means no GPS data; one is never synthesized.
type Capture struct {
	Format   Format
	Planes   []*Plane
	Facing   LensFacing
	TakenAt  time.Time
	Location *Location
}

// NewJPEGCapture wraps already-encoded JPEG bytes in a capture buffer.
func NewJPEGCapture(data []byte, facing LensFacing, takenAt time.Time, loc *Location) *Capture {
	return &Capture{
		Format:   FormatJPEG,
		Planes:   []*Plane{NewPlane(data)},
		Facing:   facing,
		TakenAt:  takenAt,
		Location: loc,
	}
}

// JPEGBytes extracts the encoded JPEG from the first plane of the capture.
// It trusts the caller's format claim; the writer performs the format guard.
func (c *Capture) JPEGBytes() []byte {
	if len(c.Planes) == 0 {
		return nil
	}
	return c.Planes[0].Copy()
}

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// LooksLikeJPEG reports whether the first plane starts with the JPEG marker.
func (c *Capture) LooksLikeJPEG() bool {
	if len(c.Planes) == 0 {
		return false
	}
	return bytes.HasPrefix(c.Planes[0].data, jpegMagic)
}
