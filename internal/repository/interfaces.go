package repository

import (
	"context"

	"go-pod-analyzer/internal/storage"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// LoadImage validates the URL and downloads the image it points to
	LoadImage(ctx context.Context, imageURL string) (*storage.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// URLValidator checks image URLs before any network access.
type URLValidator interface {
	ValidateImageURL(imageURL string) error
}

// BlobSource is an image fetcher bound to a blob storage account.
type BlobSource interface {
	storage.ImageFetcher
	Owns(imageURL string) bool
}
