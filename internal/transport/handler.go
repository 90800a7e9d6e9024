package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "go-pod-analyzer/internal/errors"
	"go-pod-analyzer/internal/logger"
	"go-pod-analyzer/internal/service"
	"go-pod-analyzer/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	version         = "1.0.0"
	requestIDHeader = "X-Request-ID"
	livenessMessage = "Server is up and running"
)

// Options configures the HTTP boundary.
type Options struct {
	MaxRequestBodySize int64
	RequestTimeout     time.Duration
	Gatherer           prometheus.Gatherer
}

var registerFieldNames sync.Once

func NewHandler(svc service.PODService, opts Options) http.Handler {
	registerFieldNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(models.JSONFieldName)
		}
	})

	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(opts.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/", liveness)
	r.GET("/health", healthCheck)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/analyze_pod", analyzePOD(svc, opts.RequestTimeout))

	return r
}

func analyzePOD(svc service.PODService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.PODRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}

		req, err := models.NewPODRequest(body.AWB, body.PODImageURL)
		if err != nil {
			respondBindError(c, err)
			return
		}

		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		record, err := svc.Pipeline(ctx, req)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
				err = apperrors.NewTimeoutError("request timed out", err)
			}
			respondError(c, apperrors.GetStatusCode(err), err)
			return
		}

		logger.ForAWB(req.AWB).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"errors":     len(record.AgentMetadata.Errors()),
		}).Info("POD analysis completed")

		c.JSON(http.StatusOK, record)
	}
}

func liveness(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{Message: livenessMessage})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, apperrors.GetStatusCode(err), err)
		}
	}
}

func respondError(c *gin.Context, code int, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{Detail: err.Error()})
}

// respondBindError reports request shape failures as a list of field errors.
func respondBindError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respondError(c, http.StatusRequestEntityTooLarge, apperrors.NewValidationError("request body too large", nil))
		return
	}

	details := bindErrorDetails(err)
	logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"errors":     len(details),
	}).WithError(err).Warn("Invalid request body")

	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, models.ValidationErrorResponse{Detail: details})
}

func bindErrorDetails(err error) []models.ValidationError {
	var fieldErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &fieldErrs):
		details := make([]models.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fieldErrorDetail(fe))
		}
		return details
	case errors.As(err, &typeErr):
		return []models.ValidationError{{
			Loc:  []string{"body", typeErr.Field},
			Msg:  "Input should be a valid " + typeErr.Type.String(),
			Type: typeErr.Type.String() + "_type",
		}}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []models.ValidationError{{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"}}
	case errors.Is(err, io.EOF):
		return []models.ValidationError{{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}}
	default:
		return []models.ValidationError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
}

func fieldErrorDetail(fe validator.FieldError) models.ValidationError {
	loc := []string{"body", fe.Field()}
	if fe.Tag() == "required" {
		return models.ValidationError{Loc: loc, Msg: "Field required", Type: "missing"}
	}
	return models.ValidationError{Loc: loc, Msg: fe.Error(), Type: fe.Tag()}
}
