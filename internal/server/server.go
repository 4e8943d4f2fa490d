package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/metrics"
	"github.com/tejusbharadwaj/meterclient/internal/models"
	middleware "github.com/tejusbharadwaj/meterclient/internal/server/middlewares"
)

// ServerConfig holds configuration options for the HTTP server
type ServerConfig struct {
	CacheSize      int           // Size of the LRU cache
	RateLimit      float64       // Requests per second
	RateLimitBurst int           // Maximum burst size for rate limiting
	MaxRange       time.Duration // Longest start..end span a query may ask for
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		RateLimit:      10.0,
		RateLimitBurst: 20,
		MaxRange:       DefaultMaxRange,
	}
}

// SampleRepository defines the interface for sample access
type SampleRepository interface {
	QuerySamples(ctx context.Context, meterID, registerCode string, start, end time.Time) ([]models.SampleRecord, error)
}

// SampleView is one sample in a query response.
type SampleView struct {
	WindowStart strfmt.DateTime `json:"window_start"`
	WindowEnd   strfmt.DateTime `json:"window_end"`
	Value       decimal.Decimal `json:"value"`
	Unit        string          `json:"unit,omitempty"`
	Quality     string          `json:"quality,omitempty"`
}

// SamplesResponse is the body of a samples query.
type SamplesResponse struct {
	MeterID      string       `json:"meter_id"`
	RegisterCode string       `json:"register_code"`
	Samples      []SampleView `json:"samples"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// SampleService serves stored samples.
type SampleService struct {
	repository SampleRepository
	validator  *RequestValidator
	logger     logrus.FieldLogger
}

func NewSampleService(repo SampleRepository, maxRange time.Duration, logger logrus.FieldLogger) *SampleService {
	return &SampleService{
		repository: repo,
		validator:  NewRequestValidator(maxRange),
		logger:     logger,
	}
}

// QuerySamples handles GET /api/v1/meters/{meterID}/registers/{code}/samples.
func (s *SampleService) QuerySamples(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meterID, code := vars["meterID"], vars["code"]
	requestID := middleware.RequestIDFromContext(r.Context())

	q := r.URL.Query()
	start, end, err := s.validator.Parse(q.Get("start"), q.Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), RequestID: requestID})
		return
	}

	records, err := s.repository.QuerySamples(r.Context(), meterID, code, start, end)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"meter":      meterID,
			"register":   code,
		}).Error("Sample query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed", RequestID: requestID})
		return
	}

	resp := SamplesResponse{
		MeterID:      meterID,
		RegisterCode: code,
		Samples:      make([]SampleView, 0, len(records)),
	}
	for _, rec := range records {
		resp.Samples = append(resp.Samples, SampleView{
			WindowStart: rec.WindowStart,
			WindowEnd:   rec.WindowEnd,
			Value:       rec.Value,
			Unit:        rec.Unit,
			Quality:     rec.Quality,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Server bundles the router with the pieces callers manage at runtime.
type Server struct {
	Handler http.Handler
	Health  *HealthChecker
	cache   *middleware.Cache
}

// InvalidateCache drops cached responses, e.g. after new samples were stored.
func (s *Server) InvalidateCache() {
	s.cache.Purge()
}

// SetupServer initializes the router with all middleware.
// gatherer serves /metrics; m receives request metrics.
func SetupServer(
	repo SampleRepository,
	config ServerConfig,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger logrus.FieldLogger,
) (*Server, error) {
	cache, err := middleware.NewCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	health := NewHealthChecker()
	svc := NewSampleService(repo, config.MaxRange, logger)

	r := mux.NewRouter()
	r.Handle("/healthz", health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(
		middleware.RequestID,                                          // Add request ID first
		middleware.RateLimit(config.RateLimit, config.RateLimitBurst), // Rate limit early
		middleware.Logging(logger),                                    // Log all requests (with request ID)
		middleware.Metrics(m),                                         // Collect metrics
		cache.Middleware,                                              // Cache last to avoid caching errors
	)
	api.HandleFunc("/meters/{meterID}/registers/{code}/samples", svc.QuerySamples).Methods(http.MethodGet)

	handler := handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger),
		handlers.PrintRecoveryStack(true),
	)(handlers.CompressHandler(r))

	return &Server{Handler: handler, Health: health, cache: cache}, nil
}
