package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "go-pod-analyzer/internal/errors"
	"go-pod-analyzer/pkg/models"
)

// analysisSchemaURL is absolute so the compiler never resolves it against
// the working directory; it appears in validation messages.
const analysisSchemaURL = "mem://pod/analysis.json"

var (
	analysisSchemaOnce sync.Once
	analysisSchema     *jsonschema.Schema
	analysisSchemaErr  error
)

func compiledAnalysisSchema() (*jsonschema.Schema, error) {
	analysisSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildAnalysisJSONSchema())
		if err != nil {
			analysisSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(analysisSchemaURL, bytes.NewReader(b)); err != nil {
			analysisSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		analysisSchema, analysisSchemaErr = compiler.Compile(analysisSchemaURL)
	})
	return analysisSchema, analysisSchemaErr
}

// DecodeAnalysis turns the model's raw reply into analysis data. A literal
// null yields nil fields and no error. Anything that does not match the output
// schema or the field constraints is a FailureResponse ModelError.
func DecodeAnalysis(model string, raw []byte) (*models.AnalysisData, error) {
	content := stripCodeFence(strings.TrimSpace(string(raw)))
	if content == "" {
		return nil, NewResponseError(model, "empty model response", nil)
	}
	if content == "null" {
		return nil, nil
	}

	schema, err := compiledAnalysisSchema()
	if err != nil {
		return nil, apperrors.NewInternalError("analysis schema", err)
	}

	var generic any
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return nil, NewResponseError(model, "model response is not valid JSON", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, NewResponseError(model, "model response does not match schema", err)
	}

	var reply analysisReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, NewResponseError(model, "unmarshal analysis data", err)
	}
	out := reply.AnalysisData
	if reply.TextQualityScore != "" {
		score, err := reply.TextQualityScore.Float64()
		if err != nil || score != math.Trunc(score) {
			return nil, NewResponseError(model, "text_quality_score is not an integer", err)
		}
		out.TextQualityScore = int(score)
	}
	if err := out.Validate(); err != nil {
		return nil, NewResponseError(model, "analysis data failed validation", err)
	}
	return &out, nil
}

// analysisReply reads the score as a number so integral floats such as 7.0,
// which the schema accepts as integers, still decode.
type analysisReply struct {
	models.AnalysisData
	TextQualityScore json.Number `json:"text_quality_score"`
}

// stripCodeFence removes a surrounding ```json fence some models add despite JSON mode.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
