package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-pod-analyzer/internal/llm"
	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/pkg/models"
)

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float32        `json:"temperature"`
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Extract implements llm.VisionModel with a single generateContent call.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Result, error) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{"model": c.cfg.Model, "provider": "gemini"})

	img, err := llm.LoadImage(ctx, c.images, c.cfg.Model, req.ImageURL)
	if err != nil {
		return nil, err
	}

	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: img.MimeType, Data: base64.StdEncoding.EncodeToString(img.Data)}},
				{Text: req.Prompt},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   llm.BuildGeminiResponseSchema(),
		},
	}
	if strings.TrimSpace(req.Instruction) != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.Instruction}}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	raw, err := llm.PostJSON(ctx, c.httpClient, c.cfg.Model, endpoint, body, map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.NewResponseError(c.cfg.Model, "decode gemini response", err)
	}

	usage := usageFrom(resp)

	if len(resp.Candidates) == 0 {
		msg := "no candidates in gemini response"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg += ": blocked (" + resp.PromptFeedback.BlockReason + ")"
		}
		return nil, llm.NewResponseError(c.cfg.Model, msg, nil)
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case "MAX_TOKENS":
		return nil, llm.NewResourceLimitError(c.cfg.Model, 0, "output token limit reached", nil)
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return nil, llm.NewResponseError(c.cfg.Model, "generation stopped: "+candidate.FinishReason, nil)
	}

	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}

	fields, err := llm.DecodeAnalysis(c.cfg.Model, []byte(text.String()))
	if err != nil {
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Warn("gemini.extract.decode_failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"null_reply": fields == nil,
	}).Info("gemini.extract.ok")

	return &llm.Result{Fields: fields, Usage: usage}, nil
}

func usageFrom(resp generateResponse) *models.TokenUsage {
	if resp.UsageMetadata == nil {
		return nil
	}
	return &models.TokenUsage{
		RequestTokens:  resp.UsageMetadata.PromptTokenCount,
		ResponseTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:    resp.UsageMetadata.TotalTokenCount,
	}
}
