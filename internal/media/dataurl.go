package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Data URLs are the portable form every captured and generated asset is
// stored in. Encode/Decode must round-trip byte-identically so a stored
// asset can be reconstructed into the exact upload or response body.

const dataURLPrefix = "data:"

// ErrNotDataURL indicates the value is not a base64 data URL.
var ErrNotDataURL = errors.New("not a data url")

// EncodeDataURL converts binary content into its portable data URL form.
func EncodeDataURL(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return dataURLPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reconstructs binary content from its portable form.
func DecodeDataURL(value string) (mimeType string, data []byte, err error) {
	if !strings.HasPrefix(value, dataURLPrefix) {
		return "", nil, ErrNotDataURL
	}
	rest := value[len(dataURLPrefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, ErrNotDataURL
	}
	header := rest[:comma]
	payload := rest[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("%w: unsupported encoding %q", ErrNotDataURL, header)
	}
	mimeType = strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url payload: %w", err)
	}
	return mimeType, data, nil
}

// SniffMIME detects the content type of raw bytes.
func SniffMIME(data []byte) string {
	return http.DetectContentType(data)
}
