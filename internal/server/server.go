package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hnrobert/gatekeep/internal/bootstrap"
	"github.com/hnrobert/gatekeep/internal/logger"
	"github.com/hnrobert/gatekeep/internal/session"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	ListenAddr string
	Version    string
}

type Server struct {
	cfg Config
	h   http.Handler
}

func New(cfg Config, sessions *session.Manager, welcome *bootstrap.Delivery) *Server {
	app := newApp(cfg, sessions, welcome)
	return &Server{cfg: cfg, h: app.routes()}
}

func (s *Server) Handler() http.Handler { return s.h }

// httpServer builds the listener-side server. Request contexts carry ctx's
// values but not its cancellation, so Shutdown can drain them.
func (s *Server) httpServer(ctx context.Context) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := s.httpServer(ctx)

	errc := make(chan error, 1)
	go func() {
		logger.Info("gatekeep listening on %s", s.cfg.ListenAddr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
