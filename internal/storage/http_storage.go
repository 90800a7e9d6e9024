package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-pod-analyzer/internal/errors"
	"go-pod-analyzer/internal/logger"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxImageSize = 20 * 1024 * 1024
	defaultTimeout      = 15 * time.Second
)

// HTTPImageFetcher downloads images over plain HTTP(S).
type HTTPImageFetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	maxBytes int64
}

type HTTPOption func(*HTTPImageFetcher)

// WithAttempts sets how many times a retryable failure is attempted.
func WithAttempts(n int) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.attempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n*backoff.
func WithBackoff(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if d >= 0 {
			h.backoff = d
		}
	}
}

func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

func NewHTTPImageFetcher(opts ...HTTPOption) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: 1,
		backoff:  time.Second,
		maxBytes: defaultMaxImageSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	var lastErr error
	for attempt := 0; attempt < h.attempts; attempt++ {
		img, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < h.attempts-1 {
			logger.WithFields(logrus.Fields{
				"url":     imageURL,
				"attempt": attempt + 1,
				"error":   err.Error(),
			}).Warn("Image fetch failed, retrying")

			select {
			case <-ctx.Done():
				return nil, apperrors.NewTransportError(ctx, "failed to fetch image", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.backoff):
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempt(s): %w", h.attempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Go-POD-Analyzer/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError(ctx, "failed to fetch image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, err
	}
	return &Image{
		Data:     data,
		MimeType: detectMimeType(resp.Header.Get("Content-Type"), data),
	}, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	return data, nil
}
