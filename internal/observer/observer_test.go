package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"go-pod-analyzer/pkg/models"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []ExtractionEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event ExtractionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string { return "panicking" }

func TestEventPublisher_NotifiesSubscribers(t *testing.T) {
	p := NewEventPublisher()
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	p.Subscribe(first)
	p.Subscribe(second)
	p.Subscribe(panickingObserver{})

	ctx, cancel := context.WithCancel(context.Background())
	p.NotifyObservers(ctx, ExtractionEvent{EventType: ExtractionCompleted, AWB: "AWB123"})
	cancel()
	p.Wait()

	for _, obs := range []*recordingObserver{first, second} {
		if len(obs.events) != 1 || obs.events[0].AWB != "AWB123" {
			t.Errorf("Observer %s: unexpected events %+v", obs.name, obs.events)
		}
	}
}

func TestEventPublisher_SynchronousObserversKeepOrder(t *testing.T) {
	p := NewEventPublisher()
	obs, err := NewPrometheusObserver(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	p.Subscribe(obs)
	ctx := context.Background()

	// No Wait between publishes: the gauge must reflect each event immediately.
	p.NotifyObservers(ctx, ExtractionEvent{EventType: ExtractionStarted})
	if got := testutil.ToFloat64(obs.inFlight); got != 1 {
		t.Errorf("Expected 1 in flight after start, got %v", got)
	}
	p.NotifyObservers(ctx, ExtractionEvent{EventType: ExtractionFailed, Model: "m"})
	if got := testutil.ToFloat64(obs.inFlight); got != 0 {
		t.Errorf("Expected 0 in flight after failure, got %v", got)
	}
	if got := testutil.ToFloat64(obs.extractions.WithLabelValues("failed", "m")); got != 1 {
		t.Errorf("Expected 1 failed extraction, got %v", got)
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), ExtractionEvent{
		EventType:      ExtractionDegraded,
		AWB:            "AWB123",
		Model:          "gemini-1.5-flash",
		ProcessingTime: 1500 * time.Millisecond,
		Errors:         []string{"status_code: 429"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	if entry["level"] != "warning" {
		t.Errorf("Expected warning level, got %v", entry["level"])
	}
	if entry["awb"] != "AWB123" || entry["elapsed_ms"] != float64(1500) {
		t.Errorf("Unexpected fields: %v", entry)
	}
	if !strings.Contains(entry["msg"].(string), "with errors") {
		t.Errorf("Unexpected message: %v", entry["msg"])
	}
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver(reg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ctx := context.Background()

	obs.OnEvent(ctx, ExtractionEvent{EventType: ExtractionStarted})
	obs.OnEvent(ctx, ExtractionEvent{EventType: ExtractionStarted})
	if got := testutil.ToFloat64(obs.inFlight); got != 2 {
		t.Errorf("Expected 2 in flight, got %v", got)
	}

	obs.OnEvent(ctx, ExtractionEvent{
		EventType:      ExtractionCompleted,
		Model:          "gemini-1.5-flash",
		ProcessingTime: time.Second,
		Tokens:         &models.TokenUsage{RequestTokens: 1200, ResponseTokens: 80, TotalTokens: 1280},
	})
	obs.OnEvent(ctx, ExtractionEvent{EventType: ExtractionDegraded, Model: "gemini-1.5-flash"})

	if got := testutil.ToFloat64(obs.inFlight); got != 0 {
		t.Errorf("Expected 0 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(obs.extractions.WithLabelValues("completed", "gemini-1.5-flash")); got != 1 {
		t.Errorf("Expected 1 completed extraction, got %v", got)
	}
	if got := testutil.ToFloat64(obs.extractions.WithLabelValues("degraded", "gemini-1.5-flash")); got != 1 {
		t.Errorf("Expected 1 degraded extraction, got %v", got)
	}
	if got := testutil.ToFloat64(obs.tokens.WithLabelValues("gemini-1.5-flash", "request")); got != 1200 {
		t.Errorf("Expected 1200 request tokens, got %v", got)
	}
	if got := testutil.CollectAndCount(obs.duration); got != 2 {
		t.Errorf("Expected 2 duration series, got %d", got)
	}

	if _, err := NewPrometheusObserver(reg); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}
