// Package httpapi serves the operational endpoints: Prometheus metrics, health, and poller status.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rewired-gh/placardwatch/internal/logger"
	"github.com/rewired-gh/placardwatch/internal/poller"
)

const shutdownTimeout = 10 * time.Second

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MarkSource exposes the poller watermark.
type MarkSource interface {
	Mark() poller.Watermark
}

// Status is the /status response body.
type Status struct {
	Watermark int64     `json:"watermark"`
	Time      time.Time `json:"time"`
}

// Server wraps an Echo instance bound to addr.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds the server. reg may be nil, in which case /metrics serves an empty registry.
func New(addr string, db Pinger, marks MarkSource, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	e.GET("/healthz", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			logger.Warn("Health check failed: %v", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Status{
			Watermark: int64(marks.Mark()),
			Time:      time.Now().UTC(),
		})
	})

	return &Server{echo: e, addr: addr}
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
