package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leihlokal/internal/appctx"
	"leihlokal/internal/config"
	"leihlokal/internal/domain"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"
	"leihlokal/internal/service"
	"leihlokal/internal/validation"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Store    domain.RecordStore
	Grid     *service.GridService
	Bookings *service.BookingService
	Items    *service.ItemService
	Drag     *service.DragService
	Context  *appctx.Context
}

type HTTPServer struct {
	echo    *echo.Echo
	addr    string
	deps    Deps
	auth    *Authenticator
	limiter *rateLimiter
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	s := &HTTPServer{
		echo:    e,
		addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		deps:    deps,
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(requestLogger(logger))

	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	e := s.echo
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	read := s.require(PermReadGrid)
	writeBookings := s.require(PermWriteBookings)
	writeItems := s.require(PermWriteItems)

	v1 := e.Group("/api/v1")
	v1.GET("/grid", s.getGrid, read)
	v1.GET("/export/:month", s.exportMonth, read)

	v1.GET("/items", s.listItems, read)
	v1.GET("/items/:id", s.getItem, read)
	v1.GET("/items/:id/availability", s.itemAvailability, read)
	v1.POST("/items", s.createItem, writeItems)
	v1.PATCH("/items/:id", s.updateItem, writeItems)
	v1.DELETE("/items/:id", s.deleteItem, writeItems)

	v1.GET("/bookings", s.listBookings, read)
	v1.GET("/bookings/:id", s.getBooking, read)
	v1.POST("/bookings", s.createBooking, writeBookings)
	v1.PATCH("/bookings/:id", s.updateBooking, writeBookings)
	v1.DELETE("/bookings/:id", s.deleteBooking, writeBookings)

	v1.POST("/drag/confirm", s.dragConfirm, writeBookings)
	v1.POST("/drag/:session/down", s.dragDown, writeBookings)
	v1.POST("/drag/:session/move", s.dragMove, writeBookings)
	v1.POST("/drag/:session/up", s.dragUp, writeBookings)
	v1.POST("/drag/:session/leave", s.dragLeave, writeBookings)

	v1.GET("/context", s.getContext, read)
	v1.PUT("/context/employee", s.putEmployee, writeBookings)
	v1.PUT("/context/settings", s.putSettings, writeItems)

	records := e.Group("/api/collections/:collection/records", s.require(PermRecords))
	records.GET("", s.listRecords)
	records.POST("", s.createRecord)
	records.GET("/:id", s.getRecord)
	records.PATCH("/:id", s.updateRecord)
	records.DELETE("/:id", s.deleteRecord)
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

func (s *HTTPServer) Addr() string {
	return s.addr
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("HTTP API listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// require checks the API key for perm and applies the per-client rate limit.
func (s *HTTPServer) require(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			apiKey := req.Header.Get(s.auth.HeaderName())
			if apiKey == "" {
				apiKey = bearerToken(req.Header.Get(echo.HeaderAuthorization))
			}

			if s.auth.Enabled() {
				if _, err := s.auth.Check(apiKey, perm); err != nil {
					if errors.Is(err, errPermissionDenied) {
						return echo.NewHTTPError(http.StatusForbidden, err.Error())
					}
					return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
				}
			}

			key := apiKey
			if key == "" {
				key = c.RealIP()
			}
			if !s.limiter.allow(key) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func requestLogger(logger *zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			metrics.IncHTTP(c.Path())

			ev := logger.Info()
			if res.Status >= http.StatusInternalServerError {
				ev = logger.Error().Err(err)
			}
			ev.Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Str("remote", c.RealIP()).
				Dur("duration", time.Since(start)).
				Msg("http request")
			return nil
		}
	}
}

// httpError maps service and store errors to HTTP status codes.
func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, models.ErrInvalidRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCollectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}

// bind decodes and validates the request body.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
