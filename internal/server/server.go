// Package server exposes scans, history, the assistant and the advisory
// feed over HTTP, with a WebSocket stream of live scan progress.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/internal/config"
)

// Server hosts the API.
type Server struct {
	cfg     config.ServerConfig
	logger  *zap.Logger
	scans   ScanService
	history HistoryService
	chat    ChatService
}

// New creates a Server. Nothing listens until Run or Serve is called.
func New(cfg config.ServerConfig, logger *zap.Logger, scans ScanService, history HistoryService, chat ChatService) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		scans:   scans,
		history: history,
		chat:    chat,
	}
}

// Router builds the HTTP handler. Background scans and open streams are bound to ctx.
func (s *Server) Router(ctx context.Context) http.Handler {
	handlers := NewHandlers(ctx, s.logger, s.scans, s.history, s.chat)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// The stream hijacks the connection, so it stays outside the logged group.
	r.Get("/api/scans/stream", handlers.HandleScanStream)

	r.Group(func(r chi.Router) {
		r.Use(s.requestLogger)
		handlers.RegisterRoutes(r)
	})
	return r
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Router(ctx),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", zap.String("address", ln.Addr().String()))
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server Serve error", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Received shutdown signal, shutting down gracefully...")
	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	<-serveErr
	s.logger.Info("API server stopped.")
	return nil
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// corsMiddleware provides basic CORS support for browser dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
