package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethpandaops/bootstrapoor/pkg/auth"
	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/i18n"
	"github.com/ethpandaops/bootstrapoor/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP API server.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	Handler() http.Handler
	Addr() net.Addr
}

// Options carries the collaborators of the server.
type Options struct {
	// Metrics is nil when metrics are disabled.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Translator *i18n.Translator
	Stats      StatsRecorder

	// Now overrides the clock of the rate limiter and request logging.
	Now func() time.Time

	// ListenAddr overrides the default 0.0.0.0:<port> listen address.
	ListenAddr string
	Version    string
}

// server implements Server.
type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	translator *i18n.Translator
	limiter    *FixedWindowLimiter
	throttler  *Throttler
	verifier   auth.Verifier
	version    string
	listenAddr string
	now        func() time.Time

	router chi.Router
	srv    *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// Ensure server implements Server.
var _ Server = (*server)(nil)

// NewServer creates a new API server.
func NewServer(log logrus.FieldLogger, cfg *config.Config, opts Options) (Server, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	translator := opts.Translator
	if translator == nil {
		translator = i18n.New(cfg.App.LocaleTag())
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	listenAddr := opts.ListenAddr
	if listenAddr == "" {
		listenAddr = net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.App.Port))
	}

	s := &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		metrics:    opts.Metrics,
		gatherer:   gatherer,
		translator: translator,
		version:    opts.Version,
		listenAddr: listenAddr,
		now:        now,
	}

	verifier, err := auth.NewVerifier(log, cfg.HTTP.AuthTokenHash)
	if err != nil {
		return nil, err
	}

	s.verifier = verifier

	s.limiter = NewFixedWindowLimiter(cfg.Throttle.TTL, cfg.Throttle.Limit, WithClock(now))
	s.throttler = NewThrottler(log, ThrottlerOptions{
		Limiter:    s.limiter,
		Translator: translator,
		KeyHeader:  cfg.Throttle.KeyHeader,
		Metrics:    opts.Metrics,
		Stats:      opts.Stats,
	})

	s.log.WithFields(logrus.Fields{
		"ttl":   cfg.Throttle.TTL,
		"limit": cfg.Throttle.Limit,
	}).Debug("Rate limiting enabled")

	if err := s.setupRouter(); err != nil {
		return nil, err
	}

	return s, nil
}

// Start binds the listener and serves in the background.
func (s *server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listenAddr, err)
	}

	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.listener = listener
	s.cancel = cancel
	s.done = make(chan struct{})
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv, done := s.srv, s.done
	s.mu.Unlock()

	s.log.WithField("addr", listener.Addr().String()).Info("Starting API server")

	go s.throttler.RunStats(ctx)

	go s.limiter.Run(ctx, s.cfg.Throttle.TTL, func(remaining int) {
		if s.metrics != nil {
			s.metrics.SetThrottleTrackedClients(remaining)
		}
	})

	go func() {
		defer close(done)

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	s.mu.Lock()
	srv, cancel, done := s.srv, s.cancel, s.done
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := srv.Shutdown(ctx)

	<-done

	return err
}

// Handler returns the root router.
func (s *server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address, or nil before Start.
func (s *server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *server) setupRouter() error {
	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)

	if s.cfg.HTTP.TrustProxy {
		r.Use(middleware.RealIP)
	}

	if s.metrics != nil {
		r.Use(requestMetrics(s.metrics))
	}

	if s.cfg.App.IsDevelopment() {
		r.Use(responseLogger(s.log, s.now))
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(s.handleNotFound)

	// Metrics endpoint.
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Application routes under the global prefix.
	app := chi.NewRouter()
	app.Use(s.throttler.Middleware)
	app.Get("/", s.handleIndex)
	app.Get("/health", s.handleHealth)
	app.With(auth.Middleware(s.verifier, s.handleUnauthorized)).Post("/upload", s.handleUpload)

	// Documentation.
	if s.cfg.Swagger.Enable {
		doc, err := BuildDocument(s.cfg, app)
		if err != nil {
			return fmt.Errorf("building api document: %w", err)
		}

		if err := mountDocs(r, s.log, s.cfg.Swagger.Path, doc); err != nil {
			return err
		}

		s.log.Infof("Document running on http://127.0.0.1:%d/%s", s.cfg.App.Port, s.cfg.Swagger.Path)
	}

	prefix := s.cfg.App.PrefixPath()
	if prefix == "" {
		prefix = "/"
	}

	r.Mount(prefix, app)

	s.router = r

	return nil
}

// ============================================================================
// Response helpers
// ============================================================================

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode" example:"400"`
	Message    string `json:"message" example:"Something went wrong"`
}

func writeJSON(log logrus.FieldLogger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}

func writeError(log logrus.FieldLogger, w http.ResponseWriter, status int, message string) {
	writeJSON(log, w, status, ErrorResponse{StatusCode: status, Message: message})
}

// ============================================================================
// Handlers
// ============================================================================

// AppInfoResponse describes the running application.
type AppInfoResponse struct {
	Name     string `json:"name" example:"bootstrapoor"`
	Version  string `json:"version" example:"v1.0.0"`
	Env      string `json:"env" example:"production"`
	Locale   string `json:"locale" example:"zh-CN"`
	Instance int    `json:"instance" example:"0"`
}

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// handleIndex godoc
//
//	@Summary		Application info
//	@Description	Returns the application name, environment and instance
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	AppInfoResponse
//	@Failure		429	{object}	RateLimitErrorResponse	"Rate limit exceeded"
//	@Router			/ [get]
func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, AppInfoResponse{
		Name:     s.cfg.App.Name,
		Version:  s.version,
		Env:      s.cfg.App.Env,
		Locale:   s.cfg.App.Locale,
		Instance: s.cfg.App.Instance,
	})
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Returns the health status of the server
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		429	{object}	RateLimitErrorResponse	"Rate limit exceeded"
//	@Router			/health [get]
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUpload godoc
//
//	@Summary		Upload files
//	@Description	Accepts a multipart form and reports the fields and files received. Files are hashed and discarded.
//	@Tags			upload
//	@Security		BearerAuth
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	false	"File to upload"
//	@Success		200		{object}	UploadResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		429		{object}	RateLimitErrorResponse	"Rate limit exceeded"
//	@Router			/upload [post]
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	lang := r.Header.Get("Accept-Language")

	result, err := ReadMultipart(r, s.cfg.HTTP.Upload)
	if err != nil {
		var limitErr *UploadLimitError
		if errors.As(err, &limitErr) {
			writeError(s.log, w, http.StatusRequestEntityTooLarge, s.uploadLimitMessage(lang, limitErr))

			return
		}

		s.log.WithError(err).Debug("Rejected multipart request")
		writeError(s.log, w, http.StatusBadRequest, s.translator.Localize(lang, i18n.KeyInvalidMultipart))

		return
	}

	if s.metrics != nil {
		for _, f := range result.Files {
			s.metrics.RecordUpload(f.Size)
		}
	}

	writeJSON(s.log, w, http.StatusOK, result)
}

func (s *server) uploadLimitMessage(lang string, err *UploadLimitError) string {
	switch {
	case errors.Is(err, ErrTooManyFiles):
		return s.translator.Localize(lang, i18n.KeyTooManyFiles, err.Limit)
	case errors.Is(err, ErrTooManyFields):
		return s.translator.Localize(lang, i18n.KeyTooManyFields, err.Limit)
	default:
		return s.translator.Localize(lang, i18n.KeyFileTooLarge, err.Filename, err.Limit)
	}
}

func (s *server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(s.log, w, http.StatusUnauthorized, s.translator.Localize(r.Header.Get("Accept-Language"), i18n.KeyUnauthorized))
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(s.log, w, http.StatusNotFound, s.translator.Localize(r.Header.Get("Accept-Language"), i18n.KeyNotFound))
}
