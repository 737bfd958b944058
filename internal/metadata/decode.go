// Package metadata reads the embedded metadata of uploaded images and folds
// it into the MetadataRecord shown by the dashboard.
package metadata

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"strings"

	"iasmeen/internal/logging"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Tag is one raw metadata entry. Description is the human readable form;
// Value carries structured data when there is any (the "gps" entry holds a
// map of coordinates).
type Tag struct {
	Description string
	Value       any
}

// Tags maps tag names to entries as the decoder produced them.
type Tags map[string]Tag

// Tag names produced directly from the image header.
const (
	TagImageWidth  = "Image Width"
	TagImageHeight = "Image Height"
	TagGPS         = "gps"
)

// DecodeError reports a payload that is not a readable JPEG or PNG.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("unsupported image format %q", e.Format)
	}
	return fmt.Sprintf("unable to read image metadata: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode extracts the metadata tags of a JPEG or PNG image. Missing EXIF
// data is not an error.
func Decode(data []byte) (Tags, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if format != "jpeg" && format != "png" {
		return nil, &DecodeError{Format: format}
	}

	tags := Tags{
		TagImageWidth:  {Description: fmt.Sprintf("%dpx", cfg.Width), Value: cfg.Width},
		TagImageHeight: {Description: fmt.Sprintf("%dpx", cfg.Height), Value: cfg.Height},
	}

	if format != "jpeg" {
		return tags, nil
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		logging.MetadataDebug("no EXIF data: %v", err)
		return tags, nil
	}
	if err := x.Walk(walker(tags)); err != nil {
		logging.MetadataDebug("EXIF walk stopped early: %v", err)
	}
	if lat, long, err := x.LatLong(); err == nil {
		tags[TagGPS] = Tag{
			Description: fmt.Sprintf("%.6f, %.6f", lat, long),
			Value:       map[string]any{"Latitude": lat, "Longitude": long},
		}
	}
	return tags, nil
}

type walker Tags

func (w walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w[string(name)] = Tag{Description: describe(tag)}
	return nil
}

func describe(tag *tiff.Tag) string {
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err == nil {
			return strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
	}
	return strings.Trim(tag.String(), `"`)
}
