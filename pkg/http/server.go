package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ForexPulse/pkg/http/middleware"
	"ForexPulse/pkg/logger"
)

// Routes mounts a handler's endpoints.
type Routes interface {
	RegisterRoutes(e *echo.Echo)
}

type serverConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	slowRequest     time.Duration
	corsOrigins     []string
	registry        *prometheus.Registry
	l               *logger.Logger
}

type ServerOption func(*serverConfig)

// WithPort listens on every interface at port.
func WithPort(port int) ServerOption {
	return func(c *serverConfig) { c.addr = net.JoinHostPort("", strconv.Itoa(port)) }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout, c.writeTimeout, c.shutdownTimeout = read, write, shutdown
	}
}

// WithSlowRequest sets the latency above which requests are logged; 0 turns it off.
func WithSlowRequest(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.slowRequest = d }
}

// WithCORS allows GET from origins; no origins means no CORS headers.
func WithCORS(origins ...string) ServerOption {
	return func(c *serverConfig) { c.corsOrigins = origins }
}

func WithLogger(l *logger.Logger) ServerOption {
	return func(c *serverConfig) { c.l = l }
}

// WithRegistry registers request metrics on reg and serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(c *serverConfig) { c.registry = reg }
}

// Server is the public API listener.
type Server struct {
	e   *echo.Echo
	cfg serverConfig
}

func NewServer(routes Routes, opts ...ServerOption) *Server {
	cfg := serverConfig{
		addr:            ":8080",
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 10 * time.Second,
		slowRequest:     time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout
	e.HTTPErrorHandler = errorHandler

	reg, gatherer := prometheus.Registerer(prometheus.DefaultRegisterer), prometheus.Gatherer(prometheus.DefaultGatherer)
	if cfg.registry != nil {
		reg, gatherer = cfg.registry, cfg.registry
	}

	e.Use(
		middleware.Recover(cfg.l),
		middleware.Metrics(reg, cfg.l, cfg.slowRequest),
		middleware.RequestLogging(cfg.l),
	)
	if len(cfg.corsOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.corsOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
		}))
	}

	if routes != nil {
		routes.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &Server{e: e, cfg: cfg}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned; later serve errors are only logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.cfg.addr, err)
	}
	s.e.Listener = ln

	go func() {
		s.cfg.l.Info("http server listening", logger.String("addr", ln.Addr().String()))
		if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.l.Error("http server stopped unexpectedly", logger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests, bounded by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.cfg.l.Info("http server stopped")
	return nil
}

// Echo exposes the router, mainly for httptest.
func (s *Server) Echo() *echo.Echo { return s.e }

// errorHandler renders router and handler errors in the response envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = respond(c, he.Code, fmt.Sprint(he.Message))
		return
	}
	_ = AppErrorResponse(c, err)
}
