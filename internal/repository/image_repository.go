package repository

import (
	"context"
	"time"

	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/internal/storage"

	"github.com/sirupsen/logrus"
)

// RoutingImageRepository sends blob URLs of the configured account to blob
// storage and everything else over HTTP.
type RoutingImageRepository struct {
	validator URLValidator
	http      storage.ImageFetcher
	blob      BlobSource
}

// NewImageRepository creates a repository; blob may be nil when no storage account is configured.
func NewImageRepository(validator URLValidator, http storage.ImageFetcher, blob BlobSource) *RoutingImageRepository {
	return &RoutingImageRepository{
		validator: validator,
		http:      http,
		blob:      blob,
	}
}

func (r *RoutingImageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}

func (r *RoutingImageRepository) LoadImage(ctx context.Context, imageURL string) (*storage.Image, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	source := "http"
	fetcher := r.http
	if r.blob != nil && r.blob.Owns(imageURL) {
		source = "azure_blob"
		fetcher = r.blob
	}

	start := time.Now()
	img, err := fetcher.FetchImage(ctx, imageURL)
	fields := logrus.Fields{
		"source":     source,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("Image load failed")
		return nil, err
	}

	fields["bytes"] = len(img.Data)
	fields["mime_type"] = img.MimeType
	logger.WithFields(fields).Debug("Image loaded")
	return img, nil
}
