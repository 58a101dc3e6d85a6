// Package chi exposes the ingestion and chat usecases over HTTP.
package chi

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/answer"
	"github.com/kailas-cloud/docchat/internal/domain/session"
	"github.com/kailas-cloud/docchat/internal/metrics"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
	"github.com/kailas-cloud/docchat/internal/version"
)

const (
	serviceName = "docchat"
	uploadField = "file"

	// Parts above this size spill to temp files during multipart parsing.
	multipartMemory = 8 << 20
	// DefaultMaxUploadBytes bounds uploads when no limit is configured.
	DefaultMaxUploadBytes = 32 << 20
	// DefaultRequestTimeout bounds the /chat handlers when none is configured.
	DefaultRequestTimeout = 400 * time.Second
)

// Ingestor turns an upload into a new session.
type Ingestor interface {
	Ingest(ctx context.Context, up ingest.Upload) (ingest.Result, error)
}

// Chatter answers queries and exposes transcripts.
type Chatter interface {
	Respond(ctx context.Context, sessionID, query string) (answer.Answer, error)
	History(ctx context.Context, sessionID string) ([]session.Turn, error)
}

// HealthChecker aggregates component probes.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	ingest         Ingestor
	chat           Chatter
	health         HealthChecker
	maxUpload      int64
	requestTimeout time.Duration
	corsOrigins    []string
	logger         *zap.Logger
}

// NewServer creates an HTTP API server. maxUpload <= 0 selects DefaultMaxUploadBytes.
func NewServer(ing Ingestor, chat Chatter, health HealthChecker, maxUpload int64, logger *zap.Logger) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ingest:         ing,
		chat:           chat,
		health:         health,
		maxUpload:      maxUpload,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger,
	}
}

// WithRequestTimeout bounds every /chat request. Keep it below the server's
// WriteTimeout: the handler context is canceled at the deadline, the chain
// stops retrying and the typed error still reaches the client.
func (s *Server) WithRequestTimeout(d time.Duration) *Server {
	if d > 0 {
		s.requestTimeout = d
	}
	return s
}

// WithCORS allows browser calls from origins ("*" for any). No origins, no CORS headers.
func (s *Server) WithCORS(origins []string) *Server {
	s.corsOrigins = origins
	return s
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Embedding-Tokens", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/chat", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(s.requestTimeout))
		r.Post("/upload_files", s.UploadFiles)
		r.Post("/query", s.Query)
		r.Get("/sessions/{sessionID}/history", s.History)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// UploadFiles ingests the multipart "file" field and opens a session for it.
func (s *Server) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		s.handleDomainError(w, r, fmt.Errorf("%w: body of %d bytes exceeds %d", domain.ErrPayloadTooLarge, r.ContentLength, s.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.handleDomainError(w, r, formError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		s.handleDomainError(w, r, fmt.Errorf("%w: multipart field %q is required", domain.ErrInvalidRequest, uploadField))
		return
	}
	var file types.File
	file.InitFromMultipart(headers[0])

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.ingest.Ingest(ctx, &file)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Status:    "success",
		SessionID: res.SessionID,
		FilePath:  res.FilePath,
		Pages:     res.Pages,
		Chunks:    res.Chunks,
	})
}

// Query answers one question within a session.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	form, err := s.bindQuery(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.chat.Respond(ctx, form.SessionID, form.Query)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    ans.Text,
		SessionID: form.SessionID,
		Outcome:   string(ans.Outcome),
	})
}

// History returns the transcript of a session.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	turns, err := s.chat.History(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Turns: turns})
}

// HealthCheck reports component status; anything but healthy is a 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Service: serviceName,
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics serves the Prometheus registry.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) bindQuery(w http.ResponseWriter, r *http.Request) (queryForm, error) {
	var form queryForm

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
		if err == nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return form, formError(err)
	}

	if err := runtime.BindForm(&form, r.PostForm, nil, nil); err != nil {
		return form, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return form, nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: body exceeds %d bytes", domain.ErrPayloadTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
}
