package utils

import (
	"mime"
	"net/http"
)

// DetectMimeAndExt sniffs a byte slice and returns its MIME type plus a
// standard file extension. Screenshots are the expected payload, so the
// fallback extension is ".png".
func DetectMimeAndExt(data []byte) (string, string) {
	mimeType := "application/octet-stream"
	if len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return mimeType, ExtForMime(mimeType)
}

// ExtForMime converts a MIME type to its first standard extension,
// defaulting to ".png".
func ExtForMime(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ".png"
	}
	return exts[0]
}
