package llm

import (
	"context"
	"errors"
	"fmt"

	"go-pod-analyzer/internal/storage"
	"go-pod-analyzer/pkg/models"
)

// ExtractRequest is one image plus the fixed extraction contract.
type ExtractRequest struct {
	ImageURL    string
	Instruction string
	Prompt      string
}

// Result is a successful invocation. Fields is nil when the model answered
// null; Usage is nil when the provider did not report token counts.
type Result struct {
	Fields *models.AnalysisData
	Usage  *models.TokenUsage
}

// VisionModel is the capability the extraction agent depends on.
type VisionModel interface {
	Name() string
	Extract(ctx context.Context, req ExtractRequest) (*Result, error)
}

// ImageLoader supplies image bytes to providers that need them inlined.
type ImageLoader interface {
	LoadImage(ctx context.Context, imageURL string) (*storage.Image, error)
}

// LoadImage fetches the request image, classifying a refused download as a
// resource-limit failure. Other errors are returned unchanged.
func LoadImage(ctx context.Context, loader ImageLoader, model, imageURL string) (*storage.Image, error) {
	img, err := loader.LoadImage(ctx, imageURL)
	if err == nil {
		return img, nil
	}
	var statusErr *storage.StatusError
	if errors.As(err, &statusErr) {
		return nil, NewResourceLimitError(model, statusErr.StatusCode,
			fmt.Sprintf("image download refused: %s", imageURL), nil)
	}
	return nil, err
}
