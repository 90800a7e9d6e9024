package service

import (
	"context"
	"time"

	"go-pod-analyzer/internal/observer"
	"go-pod-analyzer/pkg/models"
)

// PODService defines the POD extraction pipeline
type PODService interface {
	// LoadImageMaster builds the initial record for a request
	LoadImageMaster(req models.PODRequest) *models.ImageMaster

	// Pipeline runs one extraction and returns the populated record
	Pipeline(ctx context.Context, req models.PODRequest) (*models.ImageMaster, error)
}

// Extractor is the agent the pipeline delegates to.
type Extractor interface {
	Run(ctx context.Context, record *models.ImageMaster) (*models.ImageMaster, error)
	Model() string
}

type podService struct {
	agent  Extractor
	events observer.Subject
}

// NewPODService creates the pipeline; events may be nil.
func NewPODService(agent Extractor, events observer.Subject) PODService {
	return &podService{
		agent:  agent,
		events: events,
	}
}

func (s *podService) LoadImageMaster(req models.PODRequest) *models.ImageMaster {
	return &models.ImageMaster{
		ImageURL:      req.PODImageURL,
		ReferenceData: &models.ReferenceData{AWBNumber: models.String(req.AWB)},
		AnalysisData:  models.NewAnalysisData(),
	}
}

// Pipeline returns agent errors unchanged; status mapping belongs to the caller.
func (s *podService) Pipeline(ctx context.Context, req models.PODRequest) (*models.ImageMaster, error) {
	record := s.LoadImageMaster(req)

	event := observer.ExtractionEvent{
		AWB:      req.AWB,
		ImageURL: req.PODImageURL,
		Model:    s.agent.Model(),
	}
	s.publish(ctx, observer.ExtractionStarted, event)

	start := time.Now()
	out, err := s.agent.Run(ctx, record)
	event.ProcessingTime = time.Since(start)

	if err != nil {
		event.ErrorMessage = err.Error()
		s.publish(ctx, observer.ExtractionFailed, event)
		return nil, err
	}

	event.Tokens = out.AgentMetadata.Tokens
	event.Errors = out.AgentMetadata.Errors()
	if len(event.Errors) > 0 {
		s.publish(ctx, observer.ExtractionDegraded, event)
	} else {
		s.publish(ctx, observer.ExtractionCompleted, event)
	}
	return out, nil
}

func (s *podService) publish(ctx context.Context, eventType observer.EventType, event observer.ExtractionEvent) {
	if s.events == nil {
		return
	}
	event.EventType = eventType
	event.Timestamp = time.Now()
	s.events.NotifyObservers(ctx, event)
}
