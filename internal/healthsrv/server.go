package healthsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/version"
)

// Server is the ambient HTTP surface each decs service starts alongside its
// broker/KV loop, adapted from the teacher's registryservice echo setup.
type Server struct {
	echo    *echo.Echo
	tracker *Tracker
	log     *decslog.ContextLogger
	service string
}

// New builds a Server for service, bound to addr, and backed by tracker.
func New(service, addr string, tracker *Tracker, log *decslog.ContextLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, tracker: tracker, log: log, service: service}

	e.GET("/health", s.handleHealth)
	e.GET("/version", s.handleVersion)
	e.GET("/state", s.handleListOperations)
	e.GET("/state/stats", s.handleStats)
	e.GET("/state/:id", s.handleGetOperation)

	e.Server.Addr = addr
	return s
}

// Start runs the server in a background goroutine and returns immediately;
// an unexpected listener error is logged rather than returned.
func (s *Server) Start() {
	go func() {
		if err := s.echo.Start(s.echo.Server.Addr); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("health server stopped unexpectedly")
		}
	}()
}

// Shutdown drains in-flight requests, bounded by ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListOperations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.List())
}

func (s *Server) handleGetOperation(c echo.Context) error {
	op := s.tracker.Get(c.Param("id"))
	if op == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "operation not found"})
	}
	return c.JSON(http.StatusOK, op)
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.StatsSnapshot())
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.GetServiceVersion(s.service))
}

// ShutdownTimeout is a 10s graceful-shutdown bound. The cmd/* binaries do not
// reference it; each passes its own literal 10*time.Second.
const ShutdownTimeout = 10 * time.Second
