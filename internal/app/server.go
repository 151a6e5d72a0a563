package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wraps the HTTP server for graceful lifecycle.
type Server struct {
	Engine *gin.Engine
	Addr   string
	Logger *zap.Logger
	// Jobs run alongside the server and receive a context cancelled at
	// shutdown; Run waits for them before returning.
	Jobs []func(ctx context.Context)
	// ShutdownTimeout bounds graceful shutdown; 10s when zero.
	ShutdownTimeout time.Duration
}

// Run starts the server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	if s.Engine == nil {
		return fmt.Errorf("engine not configured")
	}
	// request contexts derive from base so shutdown can end open log
	// streams, which would otherwise hold Shutdown until they time out
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancelBase)

	jobsCtx, stopJobs := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, job := range s.Jobs {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(jobsCtx)
		}(job)
	}
	defer func() {
		stopJobs()
		wg.Wait()
	}()

	if s.Logger != nil {
		s.Logger.Info("http server listening", zap.String("addr", s.Addr))
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
