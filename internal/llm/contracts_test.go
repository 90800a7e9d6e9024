package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go-pod-analyzer/internal/storage"
)

type loaderFunc func(ctx context.Context, imageURL string) (*storage.Image, error)

func (f loaderFunc) LoadImage(ctx context.Context, imageURL string) (*storage.Image, error) {
	return f(ctx, imageURL)
}

func TestLoadImage_Classification(t *testing.T) {
	img := &storage.Image{Data: []byte{1}, MimeType: "image/png"}
	plainErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name       string
		loader     loaderFunc
		wantKind   FailureKind
		wantPlain  bool
		wantStatus int
	}{
		{
			name: "refused download",
			loader: func(context.Context, string) (*storage.Image, error) {
				return nil, &storage.StatusError{URL: "u", StatusCode: http.StatusNotFound}
			},
			wantKind:   FailureResourceLimit,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "network failure",
			loader: func(context.Context, string) (*storage.Image, error) {
				return nil, plainErr
			},
			wantPlain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadImage(context.Background(), tt.loader, "m", "https://x/img.png")
			if tt.wantPlain {
				if !errors.Is(err, plainErr) {
					t.Errorf("Expected original error, got %v", err)
				}
				if _, ok := AsModelError(err); ok {
					t.Error("Expected unclassified error")
				}
				return
			}
			modelErr, ok := AsModelError(err)
			if !ok {
				t.Fatalf("Expected ModelError, got %v", err)
			}
			if modelErr.Kind != tt.wantKind || modelErr.StatusCode != tt.wantStatus {
				t.Errorf("Unexpected error: %+v", modelErr)
			}
		})
	}

	got, err := LoadImage(context.Background(), loaderFunc(func(context.Context, string) (*storage.Image, error) {
		return img, nil
	}), "m", "https://x/img.png")
	if err != nil || got != img {
		t.Errorf("Expected image passthrough, got %v, %v", got, err)
	}
}

func TestModelError_Message(t *testing.T) {
	err := NewResourceLimitError("gemini-1.5-flash", 429, "quota exceeded", nil)
	want := "status_code: 429, model_name: gemini-1.5-flash, body: quota exceeded"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	cause := errors.New("boom")
	respErr := NewResponseError("m", "bad output", cause)
	if respErr.Error() != "bad output: boom" {
		t.Errorf("Unexpected message: %q", respErr.Error())
	}
	if !errors.Is(respErr, cause) {
		t.Error("Expected cause to unwrap")
	}
}
