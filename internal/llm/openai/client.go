package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-pod-analyzer/internal/llm"
	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/pkg/models"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Extract implements llm.VisionModel using chat/completions with an inline
// image and a strict JSON schema response format.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Result, error) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{"model": c.cfg.Model, "provider": "openai"})

	img, err := llm.LoadImage(ctx, c.images, c.cfg.Model, req.ImageURL)
	if err != nil {
		return nil, err
	}
	dataURL := "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	messages := []map[string]any{}
	if strings.TrimSpace(req.Instruction) != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.Instruction})
	}
	messages = append(messages, map[string]any{
		"role": "user",
		"content": []map[string]any{
			{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			{"type": "text", "text": req.Prompt},
		},
	})

	body := map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "analysis_data",
				"strict": true,
				"schema": llm.BuildAnalysisJSONSchema(),
			},
		},
	}

	// Reasoning models reject any temperature other than their default.
	if !isReasoningModel(c.cfg.Model) {
		body["temperature"] = c.cfg.Temperature
	}

	raw, err := llm.PostJSON(ctx, c.httpClient, c.cfg.Model, c.cfg.BaseURL+"/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, llm.NewResponseError(c.cfg.Model, "decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		return nil, llm.NewResponseError(c.cfg.Model, "no choices in openai response", nil)
	}

	choice := cc.Choices[0]
	if choice.FinishReason == "length" {
		return nil, llm.NewResourceLimitError(c.cfg.Model, 0, "output token limit reached", nil)
	}
	if choice.Message.Refusal != "" {
		return nil, llm.NewResponseError(c.cfg.Model, "model refused: "+choice.Message.Refusal, nil)
	}

	content := strings.TrimSpace(choice.Message.Content)
	fields, err := llm.DecodeAnalysis(c.cfg.Model, []byte(content))
	if err != nil {
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Warn("openai.extract.decode_failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"null_reply": fields == nil,
	}).Info("openai.extract.ok")

	return &llm.Result{Fields: fields, Usage: usageFrom(cc)}, nil
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

func usageFrom(cc chatResponse) *models.TokenUsage {
	if cc.Usage == nil {
		return nil
	}
	return &models.TokenUsage{
		RequestTokens:  cc.Usage.PromptTokens,
		ResponseTokens: cc.Usage.CompletionTokens,
		TotalTokens:    cc.Usage.TotalTokens,
	}
}
