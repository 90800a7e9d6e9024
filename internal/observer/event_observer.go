package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-pod-analyzer/pkg/models"
)

// ExtractionEvent represents an extraction lifecycle event
type ExtractionEvent struct {
	EventType      EventType          `json:"event_type"`
	Timestamp      time.Time          `json:"timestamp"`
	AWB            string             `json:"awb"`
	ImageURL       string             `json:"image_url"`
	Model          string             `json:"model"`
	ProcessingTime time.Duration      `json:"processing_time"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	Errors         []string           `json:"errors,omitempty"`
	Tokens         *models.TokenUsage `json:"tokens,omitempty"`
}

// EventType represents the type of extraction event
type EventType string

const (
	// ExtractionStarted when the agent is about to call the model
	ExtractionStarted EventType = "extraction_started"
	// ExtractionCompleted when fields were extracted without recorded errors
	ExtractionCompleted EventType = "extraction_completed"
	// ExtractionDegraded when a classified model failure was recorded on the record
	ExtractionDegraded EventType = "extraction_degraded"
	// ExtractionFailed when the pipeline returned an error
	ExtractionFailed EventType = "extraction_failed"
)

// Outcome returns the metric label for terminal events.
func (e EventType) Outcome() string {
	switch e {
	case ExtractionCompleted:
		return "completed"
	case ExtractionDegraded:
		return "degraded"
	case ExtractionFailed:
		return "failed"
	default:
		return ""
	}
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ExtractionEvent)
	GetObserverName() string
}

// SyncObserver is an observer that must see events in publish order. It runs
// on the publishing goroutine, so OnEvent has to return quickly.
type SyncObserver interface {
	Observer
	Synchronous() bool
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ExtractionEvent)
}

// LoggingObserver logs extraction events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles extraction events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"awb":        event.AWB,
		"image_url":  event.ImageURL,
		"model":      event.Model,
	}
	if event.ProcessingTime > 0 {
		fields["elapsed_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	if len(event.Errors) > 0 {
		fields["errors"] = event.Errors
	}
	if event.Tokens != nil {
		fields["total_tokens"] = event.Tokens.TotalTokens
	}

	switch event.EventType {
	case ExtractionStarted:
		o.logger.WithFields(fields).Debug("POD extraction started")
	case ExtractionCompleted:
		o.logger.WithFields(fields).Info("POD extraction completed")
	case ExtractionDegraded:
		o.logger.WithFields(fields).Warn("POD extraction completed with errors")
	case ExtractionFailed:
		o.logger.WithFields(fields).Error("POD extraction failed")
	default:
		o.logger.WithFields(fields).Info("Extraction event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// NotifyObservers notifies all observers of an event. Synchronous observers
// run inline; the rest run on their own goroutines with the request context
// detached so they still complete after the response is written.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ExtractionEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, observer := range observers {
		if so, ok := observer.(SyncObserver); ok && so.Synchronous() {
			notify(ctx, observer, event)
			continue
		}
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			notify(ctx, obs, event)
		}(observer)
	}
}

func notify(ctx context.Context, obs Observer, event ExtractionEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// Wait blocks until every in-flight notification has been handled.
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
