package models

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "go-pod-analyzer/internal/errors"
)

const (
	MinTextQualityScore = 0
	MaxTextQualityScore = 10
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName reports struct fields by their JSON name in validation errors.
func JSONFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// PODRequest is the inbound body of POST /analyze_pod.
type PODRequest struct {
	AWB         string `json:"awb" binding:"required" validate:"required"`
	PODImageURL string `json:"pod_image_url" binding:"required" validate:"required"`
}

// NewPODRequest builds a request, rejecting blank fields.
func NewPODRequest(awb, podImageURL string) (PODRequest, error) {
	req := PODRequest{
		AWB:         strings.TrimSpace(awb),
		PODImageURL: strings.TrimSpace(podImageURL),
	}
	if err := validate.Struct(req); err != nil {
		return PODRequest{}, apperrors.NewUnprocessableError("invalid POD request", err)
	}
	return req, nil
}

// ReferenceData carries externally supplied identifiers for correlation.
// Nothing in it is read off the image.
type ReferenceData struct {
	AWBNumber *string `json:"awb_number"`
}

// AnalysisData is the set of fields the model extracts from a POD image.
type AnalysisData struct {
	TextQualityScore   int     `json:"text_quality_score" validate:"min=0,max=10"`
	CourierPartner     *string `json:"courier_partner"`
	AWBNumber          *string `json:"awb_number"`
	RecipientName      *string `json:"recipient_name"`
	RecipientAddress   *string `json:"recipient_address"`
	RecipientSignature *bool   `json:"recipient_signature"`
	RecipientStamp     *bool   `json:"recipient_stamp"`
	DeliveryDate       *string `json:"delivery_date"`
	HandwrittenNotes   *string `json:"handwritten_notes"`
}

// NewAnalysisData returns the record every extraction starts from.
func NewAnalysisData() *AnalysisData {
	return &AnalysisData{
		TextQualityScore:   0,
		RecipientSignature: Bool(false),
	}
}

// Validate fails on out-of-range values instead of clamping them.
func (a AnalysisData) Validate() error {
	if err := validate.Struct(a); err != nil {
		return apperrors.NewValidationError("invalid analysis data", err)
	}
	return nil
}

// TokenUsage reports the model's token consumption for one call.
type TokenUsage struct {
	RequestTokens  int `json:"request_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// RunMetadata is the agent's scratchpad for a single extraction.
type RunMetadata struct {
	Errors []string `json:"errors"`

	// ReferenceAWBDistance is the edit distance between the supplied AWB and
	// the one read off the image, set only when both are present.
	ReferenceAWBDistance *int `json:"reference_awb_distance,omitempty"`
}

// AgentMetadata describes one agent execution.
type AgentMetadata struct {
	Model          string       `json:"model"`
	StartTimestamp *string      `json:"start_timestamp"`
	EndTimestamp   *string      `json:"end_timestamp"`
	Metadata       *RunMetadata `json:"metadata"`
	Tokens         *TokenUsage  `json:"tokens"`
}

// NewAgentMetadata returns metadata with an empty error list.
func NewAgentMetadata(model string) *AgentMetadata {
	return &AgentMetadata{
		Model:    model,
		Metadata: &RunMetadata{Errors: []string{}},
	}
}

// AddError records a failure message without aborting the record.
func (m *AgentMetadata) AddError(msg string) {
	if m.Metadata == nil {
		m.Metadata = &RunMetadata{}
	}
	m.Metadata.Errors = append(m.Metadata.Errors, msg)
}

// Errors returns the recorded failure messages.
func (m *AgentMetadata) Errors() []string {
	if m == nil || m.Metadata == nil {
		return nil
	}
	return m.Metadata.Errors
}

// ImageMaster is the in-flight record for one POD request.
type ImageMaster struct {
	ImageURL      string         `json:"image_url"`
	ReferenceData *ReferenceData `json:"reference_data"`
	AnalysisData  *AnalysisData  `json:"analysis_data"`
	AgentMetadata *AgentMetadata `json:"agent_metadata"`
}

// ReferenceAWB returns the supplied AWB or an empty string.
func (m *ImageMaster) ReferenceAWB() string {
	if m.ReferenceData == nil || m.ReferenceData.AWBNumber == nil {
		return ""
	}
	return *m.ReferenceData.AWBNumber
}

// Marshal serializes the record to its response form.
func (m *ImageMaster) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalImageMaster parses a serialized record and validates its analysis data.
func UnmarshalImageMaster(data []byte) (*ImageMaster, error) {
	var m ImageMaster
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.AnalysisData != nil {
		if err := m.AnalysisData.Validate(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
