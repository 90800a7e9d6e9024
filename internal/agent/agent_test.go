package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go-pod-analyzer/internal/llm"
	"go-pod-analyzer/pkg/models"
)

type stubModel struct {
	result *llm.Result
	err    error
	calls  []llm.ExtractRequest
}

func (s *stubModel) Name() string { return "gemini-1.5-flash" }

func (s *stubModel) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.Result, error) {
	s.calls = append(s.calls, req)
	return s.result, s.err
}

func newRecord() *models.ImageMaster {
	return &models.ImageMaster{
		ImageURL:      "https://x/img.png",
		ReferenceData: &models.ReferenceData{AWBNumber: models.String("AWB123")},
		AnalysisData:  models.NewAnalysisData(),
	}
}

func parseTimestamps(t *testing.T, meta *models.AgentMetadata) (time.Time, time.Time) {
	t.Helper()
	if meta == nil || meta.StartTimestamp == nil || meta.EndTimestamp == nil {
		t.Fatalf("Expected both timestamps, got %+v", meta)
	}
	start, err := time.Parse(time.RFC3339Nano, *meta.StartTimestamp)
	if err != nil {
		t.Fatalf("Invalid start timestamp: %v", err)
	}
	end, err := time.Parse(time.RFC3339Nano, *meta.EndTimestamp)
	if err != nil {
		t.Fatalf("Invalid end timestamp: %v", err)
	}
	return start, end
}

func TestRun_SingleCallWithFixedContract(t *testing.T) {
	model := &stubModel{result: &llm.Result{}}
	_, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(model.calls) != 1 {
		t.Fatalf("Expected exactly one model call, got %d", len(model.calls))
	}
	call := model.calls[0]
	if call.ImageURL != "https://x/img.png" {
		t.Errorf("Unexpected image URL: %s", call.ImageURL)
	}
	if call.Instruction != llm.ExtractionInstruction || call.Prompt != llm.UserPrompt {
		t.Error("Expected the fixed instruction and prompt")
	}
}

func TestRun_TimestampsOrdered(t *testing.T) {
	clock := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}

	outcomes := map[string]*stubModel{
		"success":        {result: &llm.Result{Fields: &models.AnalysisData{TextQualityScore: 5}}},
		"resource limit": {err: llm.NewResourceLimitError("m", 429, "quota", nil)},
		"unclassified":   {err: errors.New("boom")},
	}

	for name, model := range outcomes {
		t.Run(name, func(t *testing.T) {
			record, _ := New(model, WithClock(tick)).Run(context.Background(), newRecord())
			start, end := parseTimestamps(t, record.AgentMetadata)
			if end.Before(start) {
				t.Errorf("End %s before start %s", end, start)
			}
			if record.AgentMetadata.Model != "gemini-1.5-flash" {
				t.Errorf("Unexpected model: %s", record.AgentMetadata.Model)
			}
		})
	}
}

func TestRun_ResourceLimitLeavesDefaults(t *testing.T) {
	model := &stubModel{err: llm.NewResourceLimitError("gemini-1.5-flash", 429, "Resource has been exhausted", nil)}
	record := newRecord()

	got, err := New(model).Run(context.Background(), record)
	if err != nil {
		t.Fatalf("Expected classified failure to be absorbed, got %v", err)
	}

	if !reflect.DeepEqual(got.AnalysisData, models.NewAnalysisData()) {
		t.Errorf("Expected default analysis data, got %+v", got.AnalysisData)
	}
	errs := got.AgentMetadata.Errors()
	if len(errs) != 1 {
		t.Fatalf("Expected exactly one error, got %v", errs)
	}
	if !strings.Contains(errs[0], "429") || !strings.Contains(errs[0], "Resource has been exhausted") {
		t.Errorf("Unexpected error message: %s", errs[0])
	}
	if got.AgentMetadata.Tokens != nil {
		t.Errorf("Expected tokens unset, got %+v", got.AgentMetadata.Tokens)
	}
}

func TestRun_ResponseFailureLeavesDefaults(t *testing.T) {
	model := &stubModel{err: llm.NewResponseError("m", "model response does not match schema", errors.New("missing properties"))}

	got, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.AnalysisData, models.NewAnalysisData()) {
		t.Errorf("Expected default analysis data, got %+v", got.AnalysisData)
	}
	if len(got.AgentMetadata.Errors()) != 1 {
		t.Errorf("Expected one error, got %v", got.AgentMetadata.Errors())
	}
	if got.AgentMetadata.Tokens != nil {
		t.Error("Expected tokens unset")
	}
}

func TestRun_AllNullResult(t *testing.T) {
	model := &stubModel{result: &llm.Result{
		Fields: &models.AnalysisData{},
		Usage:  &models.TokenUsage{RequestTokens: 10, ResponseTokens: 5, TotalTokens: 15},
	}}

	got, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	a := got.AnalysisData
	if a.TextQualityScore != 0 || a.CourierPartner != nil || a.AWBNumber != nil || a.RecipientName != nil ||
		a.RecipientAddress != nil || a.RecipientSignature != nil || a.RecipientStamp != nil ||
		a.DeliveryDate != nil || a.HandwrittenNotes != nil {
		t.Errorf("Expected every field null or default, got %+v", a)
	}
	if len(got.AgentMetadata.Errors()) != 0 {
		t.Errorf("Expected no errors, got %v", got.AgentMetadata.Errors())
	}
	if got.AgentMetadata.Metadata.ReferenceAWBDistance != nil {
		t.Error("Expected no AWB distance without an extracted AWB")
	}
}

func TestRun_NullReplyKeepsDefaults(t *testing.T) {
	model := &stubModel{result: &llm.Result{Fields: nil}}

	got, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.AnalysisData, models.NewAnalysisData()) {
		t.Errorf("Expected defaults, got %+v", got.AnalysisData)
	}
	if len(got.AgentMetadata.Errors()) != 0 {
		t.Errorf("Expected no errors, got %v", got.AgentMetadata.Errors())
	}
}

func TestRun_WholesaleCopy(t *testing.T) {
	fields := &models.AnalysisData{
		TextQualityScore:   9,
		CourierPartner:     models.String("Blue Dart"),
		AWBNumber:          models.String("AWB123"),
		RecipientName:      models.String("R. Sharma"),
		RecipientAddress:   models.String("4 MG Road, Pune"),
		RecipientSignature: nil,
		RecipientStamp:     models.Bool(true),
		DeliveryDate:       models.String("12/03/2024"),
		HandwrittenNotes:   models.String("box, ok"),
	}
	usage := &models.TokenUsage{RequestTokens: 1200, ResponseTokens: 80, TotalTokens: 1280}
	model := &stubModel{result: &llm.Result{Fields: fields, Usage: usage}}

	got, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(got.AnalysisData, fields) {
		t.Errorf("Expected wholesale copy:\nwant %+v\ngot  %+v", fields, got.AnalysisData)
	}
	if !reflect.DeepEqual(got.AgentMetadata.Tokens, usage) {
		t.Errorf("Expected tokens %+v, got %+v", usage, got.AgentMetadata.Tokens)
	}
	if d := got.AgentMetadata.Metadata.ReferenceAWBDistance; d == nil || *d != 0 {
		t.Errorf("Expected AWB distance 0, got %v", d)
	}
}

func TestRun_ReferenceAWBDistance(t *testing.T) {
	tests := []struct {
		extracted string
		want      int
	}{
		{"AWB123", 0},
		{"awb 123", 0},
		{"AWB128", 1},
		{"AW8I23", 2},
	}

	for _, tt := range tests {
		t.Run(tt.extracted, func(t *testing.T) {
			model := &stubModel{result: &llm.Result{Fields: &models.AnalysisData{AWBNumber: models.String(tt.extracted)}}}
			got, _ := New(model).Run(context.Background(), newRecord())

			d := got.AgentMetadata.Metadata.ReferenceAWBDistance
			if d == nil || *d != tt.want {
				t.Errorf("Expected distance %d, got %v", tt.want, d)
			}
			if *got.AnalysisData.AWBNumber != tt.extracted {
				t.Errorf("Expected extracted AWB to be kept as read, got %s", *got.AnalysisData.AWBNumber)
			}
		})
	}
}

func TestRun_UnclassifiedErrorPropagates(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	model := &stubModel{err: boom}

	got, err := New(model).Run(context.Background(), newRecord())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected original error, got %v", err)
	}
	if got == nil || got.AgentMetadata == nil {
		t.Fatal("Expected metadata to be attached")
	}
	if len(got.AgentMetadata.Errors()) != 0 {
		t.Errorf("Expected no in-band errors, got %v", got.AgentMetadata.Errors())
	}
}

func TestRun_DHLScenario(t *testing.T) {
	model := &stubModel{result: &llm.Result{Fields: &models.AnalysisData{
		CourierPartner:     models.String("DHL"),
		RecipientSignature: models.Bool(true),
		HandwrittenNotes:   models.String("phone number 9876543210, damage"),
	}}}

	got, err := New(model).Run(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if *got.AnalysisData.CourierPartner != "DHL" {
		t.Errorf("Expected DHL, got %s", *got.AnalysisData.CourierPartner)
	}
	if !*got.AnalysisData.RecipientSignature {
		t.Error("Expected signature true")
	}
	notes := *got.AnalysisData.HandwrittenNotes
	if !strings.Contains(notes, "phone number") || !strings.Contains(notes, "damage") {
		t.Errorf("Unexpected notes: %s", notes)
	}
	if got.ReferenceAWB() != "AWB123" || got.ImageURL != "https://x/img.png" {
		t.Errorf("Reference data changed: %+v", got)
	}
}
