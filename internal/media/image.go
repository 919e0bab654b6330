package media

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

// Input photo constraints mirror what the style generation endpoint accepts:
// at least 64px per side and an aspect ratio between 1:2.5 and 2.5:1.
const (
	MinImageDimension = 64
	minAspectRatio    = 0.4
	maxAspectRatio    = 2.5
)

// ImageInfo describes a decoded capture image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// ProbeImage decodes image bounds without loading pixel data.
func ProbeImage(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image: %w", err)
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// ValidateCaptureImage enforces the booth's input photo policy.
func ValidateCaptureImage(info ImageInfo) error {
	if info.Width < MinImageDimension || info.Height < MinImageDimension {
		return fmt.Errorf("image dimensions must be at least %dx%d pixels", MinImageDimension, MinImageDimension)
	}
	ratio := float64(info.Width) / float64(info.Height)
	if ratio < minAspectRatio || ratio > maxAspectRatio {
		return fmt.Errorf("image aspect ratio must be between 1:2.5 and 2.5:1")
	}
	return nil
}

// OutputAspectRatio buckets the capture's aspect ratio into the nearest
// ratio the style generator supports.
func OutputAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio >= 1.7:
		return "16:9"
	case ratio >= 1.4:
		return "3:2"
	case ratio >= 1.1:
		return "1:1"
	case ratio >= 0.8:
		return "4:5"
	case ratio >= 0.6:
		return "2:3"
	default:
		return "9:16"
	}
}
