package llm

var analysisFields = []string{
	"text_quality_score",
	"courier_partner",
	"awb_number",
	"recipient_name",
	"recipient_address",
	"recipient_signature",
	"recipient_stamp",
	"delivery_date",
	"handwritten_notes",
}

// BuildAnalysisJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent as the structured output constraint and used locally to validate replies.
func BuildAnalysisJSONSchema() map[string]any {
	props := map[string]any{
		"text_quality_score": map[string]any{
			"type":    []any{"integer", "null"},
			"minimum": 0,
			"maximum": 10,
		},
		"courier_partner":     nullable("string"),
		"awb_number":          nullable("string"),
		"recipient_name":      nullable("string"),
		"recipient_address":   nullable("string"),
		"recipient_signature": nullable("boolean"),
		"recipient_stamp":     nullable("boolean"),
		"delivery_date":       nullable("string"),
		"handwritten_notes":   nullable("string"),
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             toAny(analysisFields),
	}
}

// BuildGeminiResponseSchema returns the OpenAPI-subset schema accepted by
// Gemini's generationConfig.responseSchema.
func BuildGeminiResponseSchema() map[string]any {
	str := func() map[string]any { return map[string]any{"type": "STRING", "nullable": true} }
	boolean := func() map[string]any { return map[string]any{"type": "BOOLEAN", "nullable": true} }

	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"text_quality_score":  map[string]any{"type": "INTEGER", "nullable": true},
			"courier_partner":     str(),
			"awb_number":          str(),
			"recipient_name":      str(),
			"recipient_address":   str(),
			"recipient_signature": boolean(),
			"recipient_stamp":     boolean(),
			"delivery_date":       str(),
			"handwritten_notes":   str(),
		},
		"required":         analysisFields,
		"propertyOrdering": analysisFields,
	}
}

func nullable(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
