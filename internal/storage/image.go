package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Image is a downloaded POD image ready to be inlined into a model request.
type Image struct {
	Data     []byte
	MimeType string
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*Image, error)
}

// StatusError reports a non-success status from the image source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	kind := "server error"
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		kind = "client error"
	}
	return fmt.Sprintf("%s: status code %d", kind, e.StatusCode)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// detectMimeType prefers the declared image content type and falls back to sniffing.
func detectMimeType(declared string, data []byte) string {
	if mt := strings.TrimSpace(strings.Split(declared, ";")[0]); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return http.DetectContentType(data)
}
