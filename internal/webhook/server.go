package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server represents the webhook HTTP server.
type Server struct {
	config    Config
	processor Processor
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new webhook server instance.
func New(config Config, processor Processor, logger *slog.Logger) *Server {
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}

	return &Server{
		config:    config,
		processor: processor,
		logger:    logger,
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", s.config.Listen,
		"verification", s.config.Secret != "",
	)
	if s.config.Secret == "" {
		s.logger.Warn("signature verification disabled: no channel secret configured")
	}

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Health checks. The platform's verify button also hits these.
	for _, path := range []string{"/", "/webhook"} {
		r.Get(path, s.handleHealth)
		r.Head(path, s.handleHealth)
		r.Post(path, s.handleWebhook)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Log request (no body content for security)
		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w)
}

// handleWebhook handles incoming webhook POST requests.
//
// The response is always 200 "OK", written before any pipeline work: a
// non-200 or slow answer makes the platform redeliver the whole batch.
// Verification failures drop the delivery after the ack.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Read the exact body bytes under the size limit. Verification must
	// run over these bytes; nothing upstream parses or re-encodes them.
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		s.respondOK(w)
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.logger.Warn("webhook payload too large, dropping delivery",
			"limit", s.config.MaxBodySize,
		)
		s.respondOK(w)
		return
	}

	verified := true
	if s.config.Secret != "" {
		signature := r.Header.Get(s.config.SignatureHeader)
		if err := verifySignature(body, signature, s.config.Secret); err != nil {
			s.logger.Warn("webhook signature verification failed",
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
			verified = false
		}
	}

	// Ack first. Everything past this point is invisible to the caller.
	s.respondOK(w)

	if !verified {
		return
	}

	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}

	delivery := Delivery{
		ID:         uuid.NewString(),
		Body:       body,
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
		Host:       r.Host,
		Proto:      proto,
		ReceivedAt: time.Now(),
	}

	s.logger.Info("delivery accepted",
		"delivery_id", delivery.ID,
		"bytes", len(body),
		"request_id", middleware.GetReqID(r.Context()),
	)

	// Hands off to the background pipeline; Process returns promptly.
	s.processor.Process(delivery)
}

// respondOK writes the unconditional plain-text acknowledgment.
func (s *Server) respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
