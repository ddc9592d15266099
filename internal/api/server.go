// Package api exposes the questionnaire, the legal assistant and the WhatsApp
// webhook over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/flow"
	"github.com/BTreeMap/TerraPipe/internal/legal"
	"github.com/BTreeMap/TerraPipe/internal/metrics"
	"github.com/BTreeMap/TerraPipe/internal/report"
	"github.com/BTreeMap/TerraPipe/internal/twiliowhatsapp"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Default server settings
const (
	DefaultAddr            = ":8080"
	DefaultRequestTimeout  = 90 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds optional server collaborators.
type Opts struct {
	Metrics   *metrics.Recorder
	Formats   *report.Factory
	WhatsApp  twiliowhatsapp.Sender
	Validator *twiliowhatsapp.Validator
	// WebhookURL is the public URL Twilio signs requests against.
	WebhookURL string
}

// Option configures a Server.
type Option func(*Opts)

func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Opts) { o.Metrics = r }
}

func WithReportFactory(f *report.Factory) Option {
	return func(o *Opts) { o.Formats = f }
}

// WithWhatsApp enables the Twilio webhook, replying through sender.
func WithWhatsApp(sender twiliowhatsapp.Sender) Option {
	return func(o *Opts) { o.WhatsApp = sender }
}

// WithWebhookValidation rejects webhook calls whose signature does not match.
func WithWebhookValidation(v *twiliowhatsapp.Validator, publicURL string) Option {
	return func(o *Opts) {
		o.Validator = v
		o.WebhookURL = publicURL
	}
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	sessions  *flow.SessionService
	assistant *legal.Assistant
	formats   *report.Factory
	metrics   *metrics.Recorder

	whatsapp   twiliowhatsapp.Sender
	validator  *twiliowhatsapp.Validator
	webhookURL string
}

// NewServer creates a Server.
func NewServer(sessions *flow.SessionService, assistant *legal.Assistant, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Formats == nil {
		cfg.Formats = report.NewFactory()
	}
	return &Server{
		sessions:   sessions,
		assistant:  assistant,
		formats:    cfg.Formats,
		metrics:    cfg.Metrics,
		whatsapp:   cfg.WhatsApp,
		validator:  cfg.Validator,
		webhookURL: cfg.WebhookURL,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(chimiddleware.Timeout(DefaultRequestTimeout))

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessionsHandler)
		r.Post("/", s.startSessionHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Delete("/", s.deleteSessionHandler)
			r.Post("/messages", s.submitHandler)
			r.Post("/back", s.backHandler)
			r.Post("/reset", s.resetHandler)
			r.Get("/report", s.reportHandler)
		})
	})

	r.Route("/legal", func(r chi.Router) {
		r.Get("/templates", s.legalTemplatesHandler)
		r.Get("/resources", s.legalResourcesHandler)
		r.Get("/{id}", s.legalHistoryHandler)
		r.Delete("/{id}", s.legalClearHandler)
		r.Post("/{id}/messages", s.legalAskHandler)
	})

	if s.whatsapp != nil {
		r.Post("/twilio/whatsapp", s.whatsappWebhookHandler)
	}
	return r
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("Server: request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("TerraPipe API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
