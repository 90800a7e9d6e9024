package container

import (
	"fmt"
	"net/http"

	"go-pod-analyzer/internal/agent"
	"go-pod-analyzer/internal/config"
	"go-pod-analyzer/internal/factory"
	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/internal/observer"
	"go-pod-analyzer/internal/repository"
	"go-pod-analyzer/internal/service"
	"go-pod-analyzer/internal/transport"
	"go-pod-analyzer/pkg/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	imageRepository repository.ImageRepository
	podService      service.PODService
	events          *observer.EventPublisher
	registry        *prometheus.Registry
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	factories := factory.NewComponentFactory(cfg)

	httpFetcher, err := factories.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create http storage: %w", err)
	}

	var blob repository.BlobSource
	if cfg.Azure.Enabled() {
		fetcher, err := factories.StorageFactory.CreateStorage(factory.AzureStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
		source, ok := fetcher.(repository.BlobSource)
		if !ok {
			return nil, fmt.Errorf("azure storage does not support URL routing")
		}
		blob = source
	}

	urlValidator := validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedImageHosts)
	imageRepository := repository.NewImageRepository(urlValidator, httpFetcher, blob)

	model, err := factories.VisionModelFactory.CreateVisionModel(cfg.Model, imageRepository, cfg.ModelTimeout)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observer.NewPrometheusObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	podService := service.NewPODService(agent.New(model), events)
	handler := transport.NewHandler(podService, transport.Options{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RequestTimeout:     cfg.RequestTimeout,
		Gatherer:           registry,
	})

	logger.WithFields(logrus.Fields{
		"model":         model.Name(),
		"azure_blob":    blob != nil,
		"allowed_hosts": len(cfg.AllowedImageHosts),
	}).Info("Container initialized")

	return &Container{
		config:          cfg,
		imageRepository: imageRepository,
		podService:      podService,
		events:          events,
		registry:        registry,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the POD extraction service
func (c *Container) Service() service.PODService {
	return c.podService
}

// Close waits for in-flight event notifications to finish.
func (c *Container) Close() {
	c.events.Wait()
}
