// Package server exposes the page manager over HTTP with a small embedded
// web page. Summaries and answers are streamed as server-sent events.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/arin/pagesum/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Server serves the web UI and the JSON/SSE API.
type Server struct {
	manager *session.Manager
	engine  *gin.Engine
}

// New creates a Server backed by m.
func New(m *session.Manager) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		manager: m,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/pages", s.openPage)
	api.GET("/pages", s.listPages)
	api.GET("/pages/:id", s.getPage)
	api.DELETE("/pages/:id", s.closePage)
	api.GET("/pages/:id/summary", s.summarize)
	api.POST("/pages/:id/messages", s.ask)
	api.DELETE("/pages/:id/messages", s.resetChat)
	api.GET("/history", s.history)
	api.GET("/stats", s.stats)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "not found"})
	})
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			"status":    status,
			"latency":   time.Since(start).Round(time.Millisecond),
			"client_ip": c.ClientIP(),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request")
		}
	}
}
