package factory

import (
	"fmt"
	"strings"
	"time"

	"go-pod-analyzer/internal/config"
	apperrors "go-pod-analyzer/internal/errors"
	"go-pod-analyzer/internal/llm"
	"go-pod-analyzer/internal/llm/gemini"
	"go-pod-analyzer/internal/llm/openai"
	"go-pod-analyzer/internal/storage"
)

// ModelFamily represents the provider behind a model name
type ModelFamily string

const (
	GeminiFamily ModelFamily = "gemini"
	OpenAIFamily ModelFamily = "openai"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// ParseModel resolves a configured model name, with or without a provider
// prefix, to its family and the bare model id the provider expects.
func ParseModel(name string) (ModelFamily, string, error) {
	name = strings.TrimSpace(name)
	if prefix, model, ok := strings.Cut(name, ":"); ok {
		switch strings.ToLower(prefix) {
		case "google-gla", "gemini", "google":
			return GeminiFamily, model, nil
		case "openai":
			return OpenAIFamily, model, nil
		default:
			return "", "", apperrors.NewValidationError(fmt.Sprintf("unsupported model provider: %s", prefix), nil)
		}
	}

	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "gemini"):
		return GeminiFamily, name, nil
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return OpenAIFamily, name, nil
	default:
		return "", "", apperrors.NewValidationError(fmt.Sprintf("unsupported model: %s", name), nil)
	}
}

// VisionModelFactory creates vision model clients
type VisionModelFactory interface {
	CreateVisionModel(cfg config.ModelConfig, images llm.ImageLoader, timeout time.Duration) (llm.VisionModel, error)
}

type visionModelFactory struct{}

func NewVisionModelFactory() VisionModelFactory {
	return &visionModelFactory{}
}

// CreateVisionModel fails fast when the selected family has no API key.
func (f *visionModelFactory) CreateVisionModel(cfg config.ModelConfig, images llm.ImageLoader, timeout time.Duration) (llm.VisionModel, error) {
	family, model, err := ParseModel(cfg.Name)
	if err != nil {
		return nil, err
	}

	switch family {
	case GeminiFamily:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, apperrors.NewValidationError("GEMINI_API_KEY environment variable not set", nil)
		}
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   model,
			Timeout: timeout,
		}, images), nil
	case OpenAIFamily:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, apperrors.NewValidationError("OPENAI_API_KEY environment variable not set", nil)
		}
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   model,
			Timeout: timeout,
		}, images), nil
	default:
		return nil, fmt.Errorf("unsupported model family: %s", family)
	}
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

type storageFactory struct {
	cfg *config.Config
}

func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(
			storage.WithAttempts(f.cfg.ImageFetchAttempts),
			storage.WithBackoff(f.cfg.ImageFetchBackoff),
			storage.WithTimeout(f.cfg.ImageFetchTimeout),
			storage.WithMaxBytes(f.cfg.MaxImageSize),
		), nil
	case AzureStorage:
		if !f.cfg.Azure.Enabled() {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		fetcher, err := storage.NewAzureBlobFetcher(f.cfg.Azure.AccountName, f.cfg.Azure.AccountKey, f.cfg.MaxImageSize)
		if err != nil {
			return nil, err
		}
		return fetcher, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	VisionModelFactory VisionModelFactory
	StorageFactory     StorageFactory
}

func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		VisionModelFactory: NewVisionModelFactory(),
		StorageFactory:     NewStorageFactory(cfg),
	}
}
