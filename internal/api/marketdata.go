package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// MarketDataRequest is the body of POST /api/v1/market-data and
// DELETE /api/v1/market-data/cache.
type MarketDataRequest struct {
	Address string `json:"address"`
}

// CacheListResponse lists cached normalized addresses, newest first.
type CacheListResponse struct {
	Addresses []string `json:"addresses"`
	Count     int      `json:"count"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// GetMarketData runs the pipeline for one address and returns the
// assembled record. Cache hits are marked with the X-Cache header.
func (c *Controller) GetMarketData(ctx echo.Context) error {
	var req MarketDataRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Request body must be JSON with an address field", http.StatusBadRequest)
	}

	record, cached, err := c.Service.Lookup(ctx.Request().Context(), req.Address)
	if err != nil {
		return c.HandleError(ctx, err, messageForError(err), statusForError(err))
	}

	if cached {
		ctx.Response().Header().Set("X-Cache", "HIT")
	} else {
		ctx.Response().Header().Set("X-Cache", "MISS")
	}
	return ctx.JSON(http.StatusOK, record)
}

// ListCache returns the normalized addresses currently cached.
func (c *Controller) ListCache(ctx echo.Context) error {
	addresses, err := c.Service.ListCached()
	if err != nil {
		return c.HandleError(ctx, err, "Unable to list cached addresses", http.StatusInternalServerError)
	}
	if addresses == nil {
		addresses = []string{}
	}
	return ctx.JSON(http.StatusOK, CacheListResponse{Addresses: addresses, Count: len(addresses)})
}

// DeleteCacheEntry removes one cached record by address.
func (c *Controller) DeleteCacheEntry(ctx echo.Context) error {
	var req MarketDataRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Request body must be JSON with an address field", http.StatusBadRequest)
	}

	if err := c.Service.DeleteCached(req.Address); err != nil {
		return c.HandleError(ctx, err, messageForError(err), statusForError(err))
	}
	return ctx.NoContent(http.StatusNoContent)
}

// HealthCheck reports service liveness for load balancers.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       c.Settings.Version,
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
	})
}
