package metadata

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"iasmeen/internal/analysis"
	"iasmeen/internal/logging"
)

// excluded are tag names never shown in the exif section: bulky payloads,
// values already shown elsewhere, and vendor blobs. The second group is the
// names goexif gives the same categories.
var excluded = foldSet(
	"gps", "thumbnail", "Image-Look", TagImageWidth, TagImageHeight, "Interop", "icc", "MakerNote",
	"ImageLength", "PixelXDimension", "PixelYDimension",
	"ThumbJPEGInterchangeFormat", "ThumbJPEGInterchangeFormatLength",
	"InteroperabilityIndex", "InteroperabilityIFDPointer", "ExifIFDPointer",
)

// gpsPrefix marks the individual GPS IFD fields; their coordinates are
// already folded into the gps entry.
var gpsPrefix = fold(TagGPS)

// slots are the folded names read into fixed record fields.
var slots = map[string]string{
	fold(TagImageWidth):  TagImageWidth,
	fold(TagImageHeight): TagImageHeight,
	fold(TagGPS):         TagGPS,
}

func foldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[fold(n)] = struct{}{}
	}
	return set
}

// fold lowercases a tag name and drops whitespace and separators, so
// "Image Width", "image_width" and "IMAGE-WIDTH" compare equal.
func fold(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '\t', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatSize renders a byte count as kilobytes with two decimals.
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

// Normalize folds raw tags into a MetadataRecord. It is a pure function of
// its inputs.
func Normalize(fileName string, size int64, tags Tags) analysis.MetadataRecord {
	rec := analysis.MetadataRecord{
		FileName: fileName,
		FileSize: FormatSize(size),
		Image:    make(map[string]analysis.Descriptor),
		EXIF:     make(map[string]analysis.Descriptor),
	}

	// Names are visited in sorted order. For a fixed field the exact name
	// beats any variant that folds to it; otherwise the first variant wins.
	picked := make(map[string]string, len(slots))
	for _, name := range slices.Sorted(maps.Keys(tags)) {
		key := fold(name)
		if slot, ok := slots[key]; ok {
			if prev, seen := picked[slot]; !seen || (name == slot && prev != slot) {
				picked[slot] = name
			}
			continue
		}
		if _, skip := excluded[key]; skip || strings.HasPrefix(key, gpsPrefix) {
			continue
		}
		tag := tags[name]
		if strings.TrimSpace(tag.Description) == "" {
			continue
		}
		rec.EXIF[name] = analysis.Descriptor{Description: tag.Description}
	}

	for slot, name := range picked {
		tag := tags[name]
		if slot == TagGPS {
			rec.GPS = normalizeGPS(tag)
			continue
		}
		rec.Image[slot] = analysis.Descriptor{Description: tag.Description}
	}
	return rec
}

func normalizeGPS(tag Tag) *analysis.GPS {
	gps := &analysis.GPS{}
	fields, ok := tag.Value.(map[string]any)
	if !ok {
		if tag.Value != nil {
			gps.Extra = map[string]any{"value": tag.Value}
		}
		return gps
	}
	for k, v := range fields {
		f, numeric := toFloat(v)
		switch {
		case k == "Latitude" && numeric:
			gps.Latitude = &f
		case k == "Longitude" && numeric:
			gps.Longitude = &f
		default:
			if gps.Extra == nil {
				gps.Extra = make(map[string]any)
			}
			gps.Extra[k] = v
		}
	}
	return gps
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Load decodes and normalizes an uploaded file.
func Load(ctx context.Context, fileName string, data []byte) (analysis.MetadataRecord, error) {
	timer := logging.StartTimer(logging.CategoryMetadata, "Load")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return analysis.MetadataRecord{}, err
	}
	tags, err := Decode(data)
	if err != nil {
		logging.Get(logging.CategoryMetadata).Warn("decode failed for %s: %v", fileName, err)
		return analysis.MetadataRecord{}, err
	}
	rec := Normalize(fileName, int64(len(data)), tags)
	logging.Metadata("loaded %s: %d exif tags, gps=%t", fileName, len(rec.EXIF), rec.GPS != nil)
	return rec, nil
}
