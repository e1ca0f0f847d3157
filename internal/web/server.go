// Package web provides a lightweight web dashboard and JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/util"
)

// Server is the web server.
type Server struct {
	engine *daemon.Engine
	port   int
	srv    *http.Server
}

// NewServer creates a new web server.
func NewServer(e *daemon.Engine, port int) *Server {
	return &Server{
		engine: e,
		port:   port,
	}
}

// Routes builds the request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	h := NewHandlers(s.engine)

	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("GET /report", h.DownloadReport)

	mux.HandleFunc("GET /api/status", h.APIGetStatus)
	mux.HandleFunc("GET /api/miners", h.APIGetMiners)
	mux.HandleFunc("GET /api/miners/{ip}", h.APIGetMiner)
	mux.HandleFunc("POST /api/miners/{ip}/{action}", h.APIMinerAction)
	mux.HandleFunc("GET /api/progress", h.APIGetProgress)
	mux.HandleFunc("GET /api/stats", h.APIGetStats)
	mux.HandleFunc("GET /api/history/fleet", h.APIGetFleetHistory)
	mux.HandleFunc("GET /api/history/{ip}", h.APIGetMinerHistory)
	mux.HandleFunc("POST /api/scan", h.APIStartScan)
	mux.HandleFunc("GET /api/ranges", h.APIGetRanges)
	mux.HandleFunc("GET /api/export", h.APIExport)

	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	util.Info("Web server starting on port %d", s.port)

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop stops the web server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
