package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-pod-analyzer/internal/errors"
	"go-pod-analyzer/internal/logger"
)

const maxErrorBody = 2048

// PostJSON sends body to url and returns the raw response body. A non-2xx
// status is reported as a FailureResourceLimit ModelError carrying the status
// and body; transport failures are network or timeout AppErrors, which the
// agent does not classify.
func PostJSON(ctx context.Context, client *http.Client, model, url string, body any, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()
	log := logger.WithFields(logrus.Fields{"req_id": reqID, "model": model})

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("encode json", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.WithField("content_length", len(bs)).Debug("llm.http.request")

	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Error("llm.http.send_error")
		return nil, apperrors.NewTransportError(ctx, "model request failed", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.WithError(err).Warn("llm.http.response_body_close_error")
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError(ctx, "read model response", err)
	}

	log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"bytes":      len(raw),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("llm.http.response")

	if resp.StatusCode/100 != 2 {
		return nil, NewResourceLimitError(model, resp.StatusCode, truncate(string(raw), maxErrorBody), nil)
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
