// Package server assembles the HTTP server and its shared middleware.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler registers its routes on the server.
type Handler interface {
	Register(e *echo.Echo)
}

type Options struct {
	Addr        string
	CORSOrigin  string
	Development bool
	// Gatherer backs GET /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

func NewServer(log *slog.Logger, opts Options, handlers ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":3000"
	}
	log = log.With(slog.String("service", "http"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = newErrorHandler(log, opts.Development)
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins(opts.CORSOrigin),
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{echo: e, addr: addr, logger: log}
}

func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func corsOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type notFoundResponse struct {
	Error string `json:"error"`
	Path  string `json:"path"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// newErrorHandler renders unknown routes as a JSON 404 and unexpected errors
// as a JSON 500. Error text is only exposed in development.
func newErrorHandler(log *slog.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		status := http.StatusInternalServerError
		if errors.As(err, &he) {
			status = he.Code
		}

		var body any
		switch {
		case status == http.StatusNotFound:
			body = notFoundResponse{Error: "Route not found", Path: c.Request().URL.RequestURI()}
		case status >= http.StatusInternalServerError:
			log.Error("request failed", slog.String("uri", c.Request().RequestURI), slog.Any("error", err))
			message := "Internal server error"
			if development {
				message = err.Error()
			}
			body = errorResponse{Error: "Something went wrong!", Message: message}
		default:
			message := http.StatusText(status)
			if he != nil {
				if m, ok := he.Message.(string); ok {
					message = m
				}
			}
			body = errorResponse{Error: http.StatusText(status), Message: message}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response failed", slog.Any("error", err))
		}
	}
}
