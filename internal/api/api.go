// Package api exposes the market-data pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/market"
	"github.com/capmatch/marketdata/internal/observability"
)

// MarketService is the pipeline surface the HTTP layer consumes.
type MarketService interface {
	Lookup(ctx context.Context, rawAddress string) (*market.MarketRecord, bool, error)
	ListCached() ([]string, error)
	DeleteCached(rawAddress string) error
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Service  MarketService
	Settings *conf.Settings

	metrics   *observability.Metrics
	apiLogger *slog.Logger
	startTime time.Time
}

// New creates an API controller and registers its routes on e.
func New(e *echo.Echo, svc MarketService, settings *conf.Settings, metrics *observability.Metrics, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		Echo:      e,
		Service:   svc,
		Settings:  settings,
		metrics:   metrics,
		apiLogger: logger.With("service", "api"),
		startTime: time.Now(),
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/market-data", c.GetMarketData)
	c.Group.GET("/market-data/cache", c.ListCache)
	c.Group.DELETE("/market-data/cache", c.DeleteCacheEntry)
	c.Group.GET("/health", c.HealthCheck)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs an error with its correlation ID and writes the
// uniform error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API Error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, resp)
}

// statusForError maps an error category to the HTTP status the thin
// client contract promises.
func statusForError(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryNetwork, errors.CategoryLimit, errors.CategoryDataUnavailable:
		return http.StatusBadGateway
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageForError distinguishes "address not recognized" from
// "temporarily unable to fetch data" for the end user.
func messageForError(err error) string {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return "Address is not valid, please check the input"
	case errors.CategoryNotFound:
		return "Address not recognized, please check spelling and try again"
	case errors.CategoryNetwork, errors.CategoryLimit, errors.CategoryTimeout, errors.CategoryDataUnavailable:
		return "Temporarily unable to fetch market data, please try again"
	case errors.CategoryDataIntegrity:
		return "Upstream data was malformed, the problem has been logged"
	default:
		return "Internal error while assembling market data"
	}
}
