package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"iasmeen/internal/analysis"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "2000.00 KB", FormatSize(2_048_000))
	assert.Equal(t, "0.00 KB", FormatSize(0))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
}

func TestNormalizeExcludesRegardlessOfCasing(t *testing.T) {
	tags := Tags{
		"Make":             {Description: "Canon"},
		"Model":            {Description: "EOS 5D"},
		"Image Width":      {Description: "4000px"},
		"Image Height":     {Description: "3000px"},
		"THUMBNAIL":        {Description: "<binary>"},
		"image-look":       {Description: "vivid"},
		"Interop":          {Description: "R98"},
		"ICC":              {Description: "sRGB"},
		"maker_note":       {Description: "blob"},
		"Maker Note":       {Description: "blob"},
		"GPS":              {Value: map[string]any{"Latitude": 48.85, "Longitude": 2.35}},
		"Software":         {Description: ""},
		"DateTimeOriginal": {Description: "2024:05:01 10:00:00"},
	}
	rec := Normalize("photo.jpg", 2_048_000, tags)

	want := map[string]analysis.Descriptor{
		"Make":             {Description: "Canon"},
		"Model":            {Description: "EOS 5D"},
		"DateTimeOriginal": {Description: "2024:05:01 10:00:00"},
	}
	if diff := cmp.Diff(want, rec.EXIF); diff != "" {
		t.Errorf("EXIF mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]analysis.Descriptor{
		"Image Width":  {Description: "4000px"},
		"Image Height": {Description: "3000px"},
	}, rec.Image)
	assert.Equal(t, "2000.00 KB", rec.FileSize)
	require.True(t, rec.GPS.HasCoordinates())
	assert.InDelta(t, 48.85, *rec.GPS.Latitude, 1e-9)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	tags := Tags{
		"Make":        {Description: "Nikon"},
		"Orientation": {Description: "Horizontal"},
		"Image Width": {Description: "10px"},
		"gps":         {Value: map[string]any{"Latitude": 1.0, "Longitude": 2.0, "Altitude": "12 m"}},
	}
	first, err := json.Marshal(Normalize("a.jpg", 100, tags))
	require.NoError(t, err)
	second, err := json.Marshal(Normalize("a.jpg", 100, tags))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestNormalizeCollidingNames(t *testing.T) {
	tags := Tags{
		"Image Width":  {Description: "4000px"},
		"ImageWidth":   {Description: "4000"},
		"imagewidth":   {Description: "40"},
		"IMAGE HEIGHT": {Description: "3000"},
		"ImageHeight":  {Description: "2999"},
		"gps":          {Value: map[string]any{"Latitude": 1.5, "Longitude": 2.5}},
		"GPS":          {Description: "junk", Value: "junk"},
	}
	want := Normalize("a.jpg", 100, tags)
	assert.Equal(t, "4000px", want.Image[TagImageWidth].Description)
	assert.Equal(t, "3000", want.Image[TagImageHeight].Description)
	require.True(t, want.GPS.HasCoordinates())
	assert.InDelta(t, 1.5, *want.GPS.Latitude, 1e-9)
	assert.Empty(t, want.EXIF)

	for range 100 {
		if diff := cmp.Diff(want, Normalize("a.jpg", 100, tags)); diff != "" {
			t.Fatalf("Normalize not deterministic (-first +got):\n%s", diff)
		}
	}
}

func TestNormalizePartialGPS(t *testing.T) {
	rec := Normalize("a.jpg", 10, Tags{
		"gps": {Value: map[string]any{"Latitude": 10.5, "Longitude": "unknown", "Altitude": 120}},
	})
	require.NotNil(t, rec.GPS)
	require.NotNil(t, rec.GPS.Latitude)
	assert.Nil(t, rec.GPS.Longitude)
	assert.False(t, rec.GPS.HasCoordinates())
	assert.Equal(t, map[string]any{"Longitude": "unknown", "Altitude": 120}, rec.GPS.Extra)
}

func TestNormalizeNoGPS(t *testing.T) {
	rec := Normalize("a.png", 10, Tags{"Make": {Description: "x"}})
	assert.Nil(t, rec.GPS)
	assert.Empty(t, rec.Image)
}

func TestDecodeJPEGWithoutEXIF(t *testing.T) {
	tags, err := Decode(encodeJPEG(t, 32, 16))
	require.NoError(t, err)
	assert.Equal(t, "32px", tags[TagImageWidth].Description)
	assert.Equal(t, "16px", tags[TagImageHeight].Description)
	_, hasGPS := tags[TagGPS]
	assert.False(t, hasGPS)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecodeJPEGWithEXIF(t *testing.T) {
	tags, err := Decode(readFixture(t, "gps.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "2px", tags[TagImageWidth].Description)
	assert.Equal(t, "Iasmeen", tags["Make"].Description)
	assert.Equal(t, "FieldCam 1", tags["Model"].Description)
	assert.Equal(t, "2024:05:01 10:00:00", tags["DateTimeOriginal"].Description)
	assert.Equal(t, "2", tags["ImageWidth"].Description)
	assert.Equal(t, "R98", tags["InteroperabilityIndex"].Description)
	assert.Contains(t, tags, "ThumbJPEGInterchangeFormat")
	assert.Contains(t, tags, "GPSLatitude")

	gps, ok := tags[TagGPS].Value.(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 48.858233, gps["Latitude"], 1e-6)
	assert.InDelta(t, 2.2945, gps["Longitude"], 1e-6)
}

func TestLoadJPEGWithEXIF(t *testing.T) {
	data := readFixture(t, "gps.jpg")
	rec, err := Load(context.Background(), "gps.jpg", data)
	require.NoError(t, err)

	want := map[string]analysis.Descriptor{
		"Make":             {Description: "Iasmeen"},
		"Model":            {Description: "FieldCam 1"},
		"DateTimeOriginal": {Description: "2024:05:01 10:00:00"},
	}
	if diff := cmp.Diff(want, rec.EXIF); diff != "" {
		t.Errorf("EXIF mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]analysis.Descriptor{
		TagImageWidth:  {Description: "2px"},
		TagImageHeight: {Description: "2px"},
	}, rec.Image)
	require.True(t, rec.GPS.HasCoordinates())
	assert.InDelta(t, 48.858233, *rec.GPS.Latitude, 1e-6)
	assert.InDelta(t, 2.2945, *rec.GPS.Longitude, 1e-6)

	again, err := Load(context.Background(), "gps.jpg", data)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(rec, again))
}

func TestDecodePNG(t *testing.T) {
	tags, err := Decode(encodePNG(t, 8, 4))
	require.NoError(t, err)
	assert.Len(t, tags, 2)
	assert.Equal(t, "8px", tags[TagImageWidth].Description)
}

func TestDecodeRejectsOtherPayloads(t *testing.T) {
	for name, data := range map[string][]byte{
		"text":  []byte("definitely not an image"),
		"empty": nil,
		"gif":   []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
		})
	}
}

func TestLoad(t *testing.T) {
	data := encodePNG(t, 20, 10)
	rec, err := Load(context.Background(), "shot.png", data)
	require.NoError(t, err)
	assert.Equal(t, "shot.png", rec.FileName)
	assert.Equal(t, FormatSize(int64(len(data))), rec.FileSize)
	assert.Equal(t, "20px", rec.Image[TagImageWidth].Description)
	assert.Empty(t, rec.EXIF)
}

func TestLoadDecodeError(t *testing.T) {
	_, err := Load(context.Background(), "notes.txt", []byte("hello"))
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}
