// Package exifmeta embeds supplementary photo metadata into JPEG artifacts
// and recovers it by re-parsing them. The tag set is the standard EXIF one:
// ImageDescription, the GPS group (latitude/longitude, altitude, speed,
// processing method) and Orientation. The mirror flag is realized as an
// actual horizontal pixel flip, with Orientation recording that the flip
// happened so a re-save never flips twice.
package exifmeta

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/nir0k/photokeep/internal/media"
)

const (
	ifdRootPath = "IFD"
	ifdGPSPath  = "IFD/GPSInfo"

	// orientationMirrored is the EXIF orientation value marking a
	// horizontally flipped image.
	orientationMirrored uint16 = 2
	orientationNormal   uint16 = 1

	gpsProcessingMethodTagID uint16 = 0x001b

	flipQuality = 95
)

// Speed is stored in the EXIF-native unit (km/h, GPSSpeedRef "K") and
// exposed in m/s. A stored zero must read back as exactly zero.
const (
	metersPerSecondPerKmh = 1000.0 / 3600.0
	kmhPerMeterPerSecond  = 3600.0 / 1000.0
)

// mirrored EXIF orientations flip along the vertical axis.
var mirroredOrientations = map[uint16]bool{2: true, 4: true, 5: true, 7: true}

// parsed is everything a single pass over the EXIF segment yields, including
// camera tags we carry across a pixel flip.
type parsed struct {
	md          media.Metadata
	orientation uint16

	dateTime         string
	dateTimeOriginal string
	cameraMake       string
	cameraModel      string
}

// Extract recovers the embedded metadata from a JPEG artifact. A JPEG with
// no EXIF segment yields the zero Metadata.
func Extract(data []byte) (media.Metadata, error) {
	p, err := extract(data)
	if err != nil {
		return media.Metadata{}, err
	}
	return p.md, nil
}

func extract(data []byte) (parsed, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return parsed{}, nil
		}
		return parsed{}, fmt.Errorf("locate exif segment: %w", err)
	}

	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return parsed{}, fmt.Errorf("parse exif tags: %w", err)
	}

	var p parsed
	var (
		latRat, lonRat     []exifcommon.Rational
		latRef, lonRef     string
		altRat, speedRat   []exifcommon.Rational
		altRef             []byte
		hasLat, hasLon     bool
		provider           string
		hasGPS             bool
	)

	for _, tag := range tags {
		switch tag.TagName {
		case "ImageDescription":
			if s, ok := tag.Value.(string); ok {
				p.md.Description = strings.TrimRight(s, "\x00")
			}
		case "Orientation":
			if v, ok := tag.Value.([]uint16); ok && len(v) > 0 {
				p.orientation = v[0]
			}
		case "DateTime":
			p.dateTime, _ = tag.Value.(string)
		case "DateTimeOriginal":
			p.dateTimeOriginal, _ = tag.Value.(string)
		case "Make":
			p.cameraMake, _ = tag.Value.(string)
		case "Model":
			p.cameraModel, _ = tag.Value.(string)
		}

		if tag.IfdPath != ifdGPSPath {
			continue
		}
		hasGPS = true
		switch tag.TagName {
		case "GPSLatitude":
			latRat, hasLat = tag.Value.([]exifcommon.Rational)
		case "GPSLongitude":
			lonRat, hasLon = tag.Value.([]exifcommon.Rational)
		case "GPSLatitudeRef":
			latRef, _ = tag.Value.(string)
		case "GPSLongitudeRef":
			lonRef, _ = tag.Value.(string)
		case "GPSAltitude":
			altRat, _ = tag.Value.([]exifcommon.Rational)
		case "GPSAltitudeRef":
			altRef, _ = tag.Value.([]byte)
		case "GPSSpeed":
			speedRat, _ = tag.Value.([]exifcommon.Rational)
		case "GPSProcessingMethod":
			provider = strings.TrimRight(tag.Formatted, "\x00")
		}
	}

	p.md.Reversed = mirroredOrientations[p.orientation]

	if hasGPS && hasLat && hasLon && len(latRat) == 3 && len(lonRat) == 3 {
		loc := &media.Location{
			Latitude:  dmsToDegrees(latRat),
			Longitude: dmsToDegrees(lonRat),
			Provider:  provider,
		}
		if latRef == "S" {
			loc.Latitude = -loc.Latitude
		}
		if lonRef == "W" {
			loc.Longitude = -loc.Longitude
		}
		if len(altRat) > 0 && altRat[0].Denominator != 0 {
			loc.Altitude = ratToFloat(altRat[0])
			if len(altRef) > 0 && altRef[0] == 1 {
				loc.Altitude = -loc.Altitude
			}
		}
		if len(speedRat) > 0 {
			loc.Speed = speedFromStored(speedRat[0])
		}
		p.md.Location = loc
	}

	return p, nil
}

// Embed writes metadata into a JPEG artifact and returns the new bytes.
// Order matters: the horizontal flip is applied before the GPS and
// description tags so the returned artifact reflects both at once. The flip
// is skipped when the artifact is already marked mirrored, which makes
// re-saving identical metadata idempotent.
func Embed(data []byte, md media.Metadata) ([]byte, error) {
	prev, err := extract(data)
	if err != nil {
		return nil, err
	}

	orientation := prev.orientation
	if orientation == 0 {
		orientation = orientationNormal
	}
	if md.Reversed && !mirroredOrientations[prev.orientation] {
		data, err = flipHorizontal(data)
		if err != nil {
			return nil, fmt.Errorf("flip image: %w", err)
		}
		orientation = orientationMirrored
	}

	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		rootIb, err = newRootBuilder()
		if err != nil {
			return nil, err
		}
	}

	if err := setRootTags(rootIb, md, orientation, prev); err != nil {
		return nil, err
	}
	if md.Location != nil {
		if err := setGPSTags(rootIb, md.Location); err != nil {
			return nil, err
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("set exif segment: %w", err)
	}

	out := new(bytes.Buffer)
	if err := sl.Write(out); err != nil {
		return nil, fmt.Errorf("serialize jpeg: %w", err)
	}
	return out.Bytes(), nil
}

func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("build ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

func setRootTags(rootIb *exif.IfdBuilder, md media.Metadata, orientation uint16, prev parsed) error {
	set := func(name string, value interface{}) error {
		if err := rootIb.SetStandardWithName(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
		return nil
	}

	if err := set("Orientation", []uint16{orientation}); err != nil {
		return err
	}
	// Written even when empty so a re-save clears a stale description.
	if err := set("ImageDescription", md.Description); err != nil {
		return err
	}

	// Re-encoding during a flip drops the camera's own tags; carry the
	// interesting ones over.
	carry := map[string]string{
		"DateTime":         prev.dateTime,
		"DateTimeOriginal": prev.dateTimeOriginal,
		"Make":             prev.cameraMake,
		"Model":            prev.cameraModel,
	}
	for name, value := range carry {
		if value == "" {
			continue
		}
		if err := set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func setGPSTags(rootIb *exif.IfdBuilder, loc *media.Location) error {
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, ifdGPSPath)
	if err != nil {
		return fmt.Errorf("create gps ifd: %w", err)
	}
	set := func(name string, value interface{}) error {
		if err := gpsIb.SetStandardWithName(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
		return nil
	}

	latRef, lonRef := "N", "E"
	if loc.Latitude < 0 {
		latRef = "S"
	}
	if loc.Longitude < 0 {
		lonRef = "W"
	}

	if err := set("GPSLatitudeRef", latRef); err != nil {
		return err
	}
	if err := set("GPSLatitude", degreesToDMS(loc.Latitude)); err != nil {
		return err
	}
	if err := set("GPSLongitudeRef", lonRef); err != nil {
		return err
	}
	if err := set("GPSLongitude", degreesToDMS(loc.Longitude)); err != nil {
		return err
	}

	altRef := []byte{0}
	alt := loc.Altitude
	if alt < 0 {
		altRef[0] = 1
		alt = -alt
	}
	if err := set("GPSAltitudeRef", altRef); err != nil {
		return err
	}
	if err := set("GPSAltitude", []exifcommon.Rational{floatToRat(alt, 100)}); err != nil {
		return err
	}

	if err := set("GPSSpeedRef", "K"); err != nil {
		return err
	}
	if err := set("GPSSpeed", []exifcommon.Rational{speedToStored(loc.Speed)}); err != nil {
		return err
	}

	if loc.Provider != "" {
		// GPSProcessingMethod is an undefined-type tag whose encodeable
		// value cannot be constructed outside the library; hand the builder
		// the raw bytes instead.
		bt := exif.NewBuilderTag(
			ifdGPSPath,
			gpsProcessingMethodTagID,
			exifcommon.TypeUndefined,
			exif.NewIfdBuilderTagValueFromBytes([]byte(loc.Provider)),
			exifcommon.EncodeDefaultByteOrder,
		)
		if err := gpsIb.Set(bt); err != nil {
			return fmt.Errorf("set GPSProcessingMethod: %w", err)
		}
	}
	return nil
}

// flipHorizontal re-encodes the image mirrored along the vertical axis.
func flipHorizontal(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	flipped := imaging.FlipH(img)

	out := new(bytes.Buffer)
	if err := jpeg.Encode(out, flipped, &jpeg.Options{Quality: flipQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

func degreesToDMS(deg float64) []exifcommon.Rational {
	deg = math.Abs(deg)
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	s := (deg - d - m/60) * 3600
	return []exifcommon.Rational{
		{Numerator: uint32(d), Denominator: 1},
		{Numerator: uint32(m), Denominator: 1},
		{Numerator: uint32(math.Round(s * 10000)), Denominator: 10000},
	}
}

func dmsToDegrees(r []exifcommon.Rational) float64 {
	return ratToFloat(r[0]) + ratToFloat(r[1])/60 + ratToFloat(r[2])/3600
}

func ratToFloat(r exifcommon.Rational) float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

func floatToRat(v float64, precision uint32) exifcommon.Rational {
	return exifcommon.Rational{
		Numerator:   uint32(math.Round(v * float64(precision))),
		Denominator: precision,
	}
}

func speedToStored(metersPerSecond float64) exifcommon.Rational {
	if metersPerSecond == 0 {
		return exifcommon.Rational{Numerator: 0, Denominator: 1}
	}
	return floatToRat(metersPerSecond*kmhPerMeterPerSecond, 100)
}

func speedFromStored(r exifcommon.Rational) float64 {
	if r.Numerator == 0 {
		return 0
	}
	return ratToFloat(r) * metersPerSecondPerKmh
}
