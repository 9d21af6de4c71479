package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/config"
)

// Server serves the webhook receiver and, when given, the API handler on
// one port.
type Server struct {
	handler *Handler
	api     http.Handler
	cfg     config.ServerConfig
	srv     *http.Server
}

// NewServer creates a new Server. api may be nil.
func NewServer(cfg config.ServerConfig, handler *Handler, api http.Handler) *Server {
	return &Server{
		handler: handler,
		api:     api,
		cfg:     cfg,
	}
}

// ListenAndServe starts the server with graceful shutdown.
// It blocks until the context is cancelled or a termination signal is received.
func (s *Server) ListenAndServe(ctx context.Context) error {
	port := s.cfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[webhook] listening on :%d", port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("[webhook] shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Router returns the routes of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.With(bodySizeLimitMiddleware(10<<20)).Post("/webhook", s.handler.HandleWebhook)
	if s.api != nil {
		r.Mount("/", s.api)
	}
	return r
}

// bodySizeLimitMiddleware limits the request body size.
func bodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
