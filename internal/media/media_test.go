package media_test

import (
	"errors"
	"image/color"
	"testing"

	"membooth/internal/media"
	"membooth/internal/testsupport"
)

func TestDataURLRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xfe, 0xff, 'a', 'b'}
	encoded := media.EncodeDataURL("image/png", payload)

	mimeType, decoded, err := media.DecodeDataURL(encoded)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if mimeType != "image/png" {
		t.Fatalf("unexpected mime type %q", mimeType)
	}
	if string(decoded) != string(payload) {
		t.Fatalf("payload mismatch: got %v want %v", decoded, payload)
	}
}

func TestDecodeDataURLRejectsPlainStrings(t *testing.T) {
	cases := []string{
		"",
		"hello world",
		"data:image/png",
		"data:image/png;utf8,abc",
	}
	for _, value := range cases {
		if _, _, err := media.DecodeDataURL(value); !errors.Is(err, media.ErrNotDataURL) {
			t.Fatalf("expected ErrNotDataURL for %q, got %v", value, err)
		}
	}
}

func TestEncodeDataURLDefaultsMIME(t *testing.T) {
	encoded := media.EncodeDataURL("  ", []byte("x"))
	mimeType, _, err := media.DecodeDataURL(encoded)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if mimeType != "application/octet-stream" {
		t.Fatalf("unexpected fallback mime %q", mimeType)
	}
}

func TestProbeImageReportsDimensions(t *testing.T) {
	data := testsupport.PNGBytes(t, 640, 480, color.White)

	info, err := media.ProbeImage(data)
	if err != nil {
		t.Fatalf("ProbeImage: %v", err)
	}
	if info.Width != 640 || info.Height != 480 {
		t.Fatalf("unexpected dimensions %dx%d", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Fatalf("unexpected format %q", info.Format)
	}
}

func TestValidateCaptureImagePolicy(t *testing.T) {
	if err := media.ValidateCaptureImage(media.ImageInfo{Width: 640, Height: 480}); err != nil {
		t.Fatalf("expected 640x480 to pass: %v", err)
	}
	if err := media.ValidateCaptureImage(media.ImageInfo{Width: 32, Height: 480}); err == nil {
		t.Fatal("expected undersized width to fail")
	}
	if err := media.ValidateCaptureImage(media.ImageInfo{Width: 1000, Height: 100}); err == nil {
		t.Fatal("expected extreme aspect ratio to fail")
	}
}

func TestOutputAspectRatioBuckets(t *testing.T) {
	cases := []struct {
		width, height int
		want          string
	}{
		{1920, 1080, "16:9"},
		{1500, 1000, "3:2"},
		{1000, 1000, "1:1"},
		{800, 1000, "4:5"},
		{667, 1000, "2:3"},
		{1080, 1920, "9:16"},
		{0, 100, "1:1"},
	}
	for _, tc := range cases {
		if got := media.OutputAspectRatio(tc.width, tc.height); got != tc.want {
			t.Errorf("OutputAspectRatio(%d, %d) = %q, want %q", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestMIMEClassification(t *testing.T) {
	if !media.IsImageMIME("image/png") || !media.IsImageMIME("IMAGE/JPEG") {
		t.Fatal("expected image mimes to classify as images")
	}
	if media.IsImageMIME("audio/wav") {
		t.Fatal("audio mime misclassified as image")
	}
	if !media.IsCaptureAudioMIME("audio/webm") {
		t.Fatal("expected audio/webm to be an accepted capture mime")
	}
	if media.IsCaptureAudioMIME("audio/midi") {
		t.Fatal("unexpected capture mime accepted")
	}
}

func TestExtensionForMIME(t *testing.T) {
	cases := map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"audio/wav":  ".wav",
		"unknown/x":  ".bin",
	}
	for mimeType, want := range cases {
		if got := media.ExtensionForMIME(mimeType); got != want {
			t.Errorf("ExtensionForMIME(%q) = %q, want %q", mimeType, got, want)
		}
	}
}
