// Package server exposes the file service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filesvc/pkg/log"
	"filesvc/pkg/manager"
	"filesvc/pkg/metrics"
	"filesvc/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	healthTimeout          = 3 * time.Second

	msgInternalError = "internal error"
	msgFileRequired  = "file required"
	msgFileNotFound  = "file not found"
)

// Pinger reports whether the metadata database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Zero values disable the optional parts.
type Options struct {
	Metrics         *metrics.Metrics
	Database        Pinger
	UIDir           string
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to the file manager.
type Server struct {
	echo            *echo.Echo
	manager         *manager.Manager
	metrics         *metrics.Metrics
	database        Pinger
	uiDir           string
	shutdownTimeout time.Duration
}

// New creates a Server with its routes installed.
func New(mgr *manager.Manager, opts Options) *Server {
	srv := &Server{
		echo:            echo.New(),
		manager:         mgr,
		metrics:         opts.Metrics,
		database:        opts.Database,
		uiDir:           opts.UIDir,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	if srv.shutdownTimeout <= 0 {
		srv.shutdownTimeout = defaultShutdownTimeout
	}
	srv.setupRoutes()
	return srv
}

// Handler returns the routed HTTP handler.
func (srv *Server) Handler() http.Handler {
	return srv.echo
}

// Start serves on addr until SIGINT or SIGTERM arrives, then shuts down gracefully.
func (srv *Server) Start(addr string) error {
	errCh := make(chan error, 1)

	go func() {
		log.Info().
			Str("addr", addr).
			Str("ui_dir", srv.uiDir).
			Int64("max_upload_bytes", srv.manager.MaxUploadBytes()).
			Msg("Starting file server")

		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Server startup failed")
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Signal received")
	}

	return srv.Shutdown()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (srv *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

func (srv *Server) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.HTTPErrorHandler = srv.handleError

	srv.echo.Use(middleware.Recover())
	srv.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logRequest,
	}))
	srv.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	srv.echo.POST("/upload", srv.uploadFile)
	srv.echo.GET("/files", srv.listFiles)
	srv.echo.GET("/files/:id", srv.downloadFile)
	srv.echo.GET("/files/:id/info", srv.getFileInfo)
	srv.echo.GET("/health", srv.health)

	if srv.metrics != nil {
		srv.echo.GET("/metrics", echo.WrapHandler(srv.metrics.Handler()))
	}

	srv.mountUI()
}

func logRequest(_ echo.Context, v middleware.RequestLoggerValues) error {
	event := log.Info()
	if v.Error != nil {
		event = log.Warn().Err(v.Error)
	}
	event.
		Str("method", v.Method).
		Str("uri", v.URI).
		Int("status", v.Status).
		Str("remote_ip", v.RemoteIP).
		Dur("latency", v.Latency).
		Msg("Request handled")
	return nil
}

// handleError renders errors that escaped a handler as JSON. Anything that
// is not an echo.HTTPError becomes an opaque 500.
func (srv *Server) handleError(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := msgInternalError

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if text, ok := httpErr.Message.(string); ok && code < http.StatusInternalServerError {
			message = text
		}
	} else {
		log.Error().Err(err).Str("uri", ctx.Request().RequestURI).Msg("Unhandled request error")
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(code)
	} else {
		err = ctx.JSON(code, models.ErrorResponse{Error: message})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func errorJSON(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, models.ErrorResponse{Error: message})
}
