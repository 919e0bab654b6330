package media

import "strings"

// Audio and video capture uploads from browsers arrive as WebM or Ogg;
// some platforms fall back to MP4 or plain WAV.
var captureAudioMIMEs = map[string]struct{}{
	"audio/webm": {},
	"audio/ogg":  {},
	"audio/wav":  {},
	"audio/wave": {},
	"audio/mp4":  {},
	"video/webm": {}, // MediaRecorder labels audio-only WebM this way on some browsers
}

var captureVideoMIMEs = map[string]struct{}{
	"video/webm": {},
	"video/mp4":  {},
}

// IsCaptureAudioMIME reports whether a MIME type is accepted as a voice sample.
func IsCaptureAudioMIME(mimeType string) bool {
	_, ok := captureAudioMIMEs[normalizeMIME(mimeType)]
	return ok
}

// IsCaptureVideoMIME reports whether a MIME type is accepted as a video clip.
func IsCaptureVideoMIME(mimeType string) bool {
	_, ok := captureVideoMIMEs[normalizeMIME(mimeType)]
	return ok
}

// IsImageMIME reports whether a MIME type is an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(normalizeMIME(mimeType), "image/")
}

// IsAudioMIME reports whether a MIME type is audio.
func IsAudioMIME(mimeType string) bool {
	return strings.HasPrefix(normalizeMIME(mimeType), "audio/")
}

// ExtensionForMIME maps a MIME type to the download file extension.
func ExtensionForMIME(mimeType string) string {
	switch normalizeMIME(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/webm":
		return ".weba"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

// normalizeMIME strips parameters (e.g. "audio/webm;codecs=opus") and
// lowercases the type.
func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
