package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"membooth/internal/media"
)

// PNGBytes renders a solid-color PNG with the requested dimensions.
func PNGBytes(t testing.TB, width, height int, fill color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// PNGDataURL renders a solid-color PNG and wraps it in a data URL.
func PNGDataURL(t testing.TB, width, height int, fill color.Color) string {
	t.Helper()
	return media.EncodeDataURL("image/png", PNGBytes(t, width, height, fill))
}

// CaptureDataURL returns a data URL for a typical booth capture frame.
func CaptureDataURL(t testing.TB) string {
	t.Helper()
	return PNGDataURL(t, 640, 480, color.RGBA{R: 0xc0, G: 0x80, B: 0x40, A: 0xff})
}
