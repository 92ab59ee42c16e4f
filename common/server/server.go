package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pluginsite/registry/common/logger"
)

// bindRetryInterval is how long to wait before rebinding when the port is
// still held, typically by a previous instance that has not finished its
// shutdown drain yet.
const bindRetryInterval = time.Second

// Server wraps HTTP server with graceful shutdown
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
	name       string
	drain      func(context.Context)
}

// New creates a new server
func New(name string, port int, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log:  log,
		name: name,
	}
}

// OnShutdown registers a drain function that runs after the listener stops
// accepting requests but before Start returns. The hook server uses it to
// let in-flight webhook processing finish.
func (s *Server) OnShutdown(fn func(context.Context)) {
	s.drain = fn
}

// Start starts the server with graceful shutdown. A bind failure because the
// address is in use is retried indefinitely so a restart can overlap with
// its predecessor's drain.
func (s *Server) Start() error {
	serverErrors := make(chan error, 1)

	go func() {
		for {
			s.log.Info(fmt.Sprintf("%s starting", s.name), "addr", s.httpServer.Addr)
			err := s.httpServer.ListenAndServe()
			if errors.Is(err, syscall.EADDRINUSE) {
				s.log.Warn("address in use, retrying", "addr", s.httpServer.Addr)
				time.Sleep(bindRetryInterval)
				continue
			}
			serverErrors <- err
			return
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.log.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			if err := s.httpServer.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}

		if s.drain != nil {
			s.drain(ctx)
		}

		s.log.Info("shutdown complete")
	}

	return nil
}
