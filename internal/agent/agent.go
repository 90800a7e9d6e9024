package agent

import (
	"context"
	"strings"
	"time"

	"github.com/arbovm/levenshtein"
	"github.com/sirupsen/logrus"

	"go-pod-analyzer/internal/llm"
	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/pkg/models"
)

// Agent wraps a single vision model call and maps its output onto the record.
// It holds no per-request state and is safe for concurrent use.
type Agent struct {
	model       llm.VisionModel
	instruction string
	prompt      string
	now         func() time.Time
}

type Option func(*Agent)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

func New(model llm.VisionModel, opts ...Option) *Agent {
	a := &Agent{
		model:       model,
		instruction: llm.ExtractionInstruction,
		prompt:      llm.UserPrompt,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Model() string {
	return a.model.Name()
}

// Run performs one extraction. Classified model failures are recorded in the
// record's metadata and Run returns a nil error; any other failure is returned
// unchanged. Metadata is attached to the record in every case.
func (a *Agent) Run(ctx context.Context, record *models.ImageMaster) (*models.ImageMaster, error) {
	meta := models.NewAgentMetadata(a.model.Name())
	meta.StartTimestamp = models.String(a.timestamp())

	awb := record.ReferenceAWB()
	log := logger.ForAWB(awb).WithField("model", meta.Model)
	log.Info("Extracting structured analysis data")

	result, err := a.model.Extract(ctx, llm.ExtractRequest{
		ImageURL:    record.ImageURL,
		Instruction: a.instruction,
		Prompt:      a.prompt,
	})

	modelErr, classified := llm.AsModelError(err)
	switch {
	case err == nil:
		a.apply(record, meta, result)
		log.Info("Analysis data extracted successfully")
	case classified && modelErr.Kind == llm.FailureResourceLimit:
		log.WithError(err).WithField("status", modelErr.StatusCode).Error("Resource limits reached")
		meta.AddError(err.Error())
	case classified:
		log.WithError(err).Error("Model response failed validation")
		meta.AddError(err.Error())
	default:
		log.WithError(err).Error("Extraction failed")
	}

	meta.EndTimestamp = models.String(a.timestamp())
	record.AgentMetadata = meta

	if err != nil && !classified {
		return record, err
	}
	return record, nil
}

func (a *Agent) apply(record *models.ImageMaster, meta *models.AgentMetadata, result *llm.Result) {
	if result == nil {
		return
	}
	meta.Tokens = result.Usage
	if result.Fields == nil {
		return
	}

	fields := *result.Fields
	record.AnalysisData = &fields

	reference := normalizeAWB(record.ReferenceAWB())
	if fields.AWBNumber != nil && reference != "" {
		extracted := normalizeAWB(*fields.AWBNumber)
		if extracted != "" {
			distance := levenshtein.Distance(reference, extracted)
			meta.Metadata.ReferenceAWBDistance = &distance
			if distance > 0 {
				logger.ForAWB(record.ReferenceAWB()).WithFields(logrus.Fields{
					"extracted_awb": *fields.AWBNumber,
					"distance":      distance,
				}).Warn("Extracted AWB differs from reference")
			}
		}
	}
}

func (a *Agent) timestamp() string {
	return a.now().UTC().Format(time.RFC3339Nano)
}

func normalizeAWB(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
