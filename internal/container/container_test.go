package container

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-pod-analyzer/internal/config"
	apperrors "go-pod-analyzer/internal/errors"

	"github.com/gin-gonic/gin"
)

func testConfig() *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  time.Second,
		ModelTimeout:       time.Second,
		MaxRequestBodySize: 1024,
		MaxImageSize:       1024 * 1024,
		ImageFetchAttempts: 1,
		LogLevel:           "error",
		Model: config.ModelConfig{
			Name:          "gemini-1.5-flash",
			GeminiAPIKey:  "test-key",
			GeminiBaseURL: "http://127.0.0.1:1",
		},
	}
}

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, err := NewContainer(testConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer c.Close()

	if c.Service() == nil || c.Config() == nil {
		t.Fatal("Expected wired service and config")
	}

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	for _, name := range []string{"pod_extractions_in_flight", "go_goroutines"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("Expected metric %s to be exposed", name)
		}
	}
}

func TestNewContainer_WithAzure(t *testing.T) {
	cfg := testConfig()
	cfg.Azure = config.AzureConfig{
		AccountName: "podstore",
		AccountKey:  base64.StdEncoding.EncodeToString([]byte("key")),
	}

	c, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	c.Close()
}

func TestNewContainer_MissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Model.GeminiAPIKey = ""

	_, err := NewContainer(cfg)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
