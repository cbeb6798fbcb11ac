package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/logging"
	"github.com/capmatch/marketdata/internal/market"
)

type fakeService struct {
	record    *market.MarketRecord
	cached    bool
	lookupErr error

	addresses []string
	listErr   error
	deleteErr error
}

func (f *fakeService) Lookup(_ context.Context, _ string) (*market.MarketRecord, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	return f.record, f.cached, nil
}

func (f *fakeService) ListCached() ([]string, error) {
	return f.addresses, f.listErr
}

func (f *fakeService) DeleteCached(string) error {
	return f.deleteErr
}

func testRecord() *market.MarketRecord {
	return &market.MarketRecord{
		Identity: market.Identity{
			NormalizedAddress: "123 main st springfield",
			GeographyName:     "Census Tract 11, Travis County, Texas",
			GeographyLevel:    geocoder.LevelTract,
			DataYear:          2023,
		},
		Population: &market.PopulationSection{Total: 5000},
	}
}

func newTestController(svc MarketService) (*Controller, *echo.Echo) {
	e := echo.New()
	settings := &conf.Settings{Version: "test"}
	c := New(e, svc, settings, nil, logging.NewDiscardLogger("api-test", nil))
	return c, e
}

func postJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetMarketDataSuccess(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{record: testRecord()})
	rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"123 Main St, Springfield"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var got market.MarketRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "123 main st springfield", got.Identity.NormalizedAddress)
	require.NotNil(t, got.Population)
	assert.Equal(t, 5000, got.Population.Total)
}

func TestGetMarketDataCacheHitHeader(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{record: testRecord(), cached: true})
	rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"123 Main St"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestGetMarketDataPartialRecordIsStill200(t *testing.T) {
	t.Parallel()

	record := testRecord()
	record.Walkability = nil // degraded section
	_, e := newTestController(&fakeService{record: record})
	rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"123 Main St"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "walkability")
}

func TestGetMarketDataErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category errors.ErrorCategory
		want     int
	}{
		{"validation", errors.CategoryValidation, http.StatusBadRequest},
		{"not found", errors.CategoryNotFound, http.StatusNotFound},
		{"network", errors.CategoryNetwork, http.StatusBadGateway},
		{"data unavailable", errors.CategoryDataUnavailable, http.StatusBadGateway},
		{"timeout", errors.CategoryTimeout, http.StatusGatewayTimeout},
		{"data integrity", errors.CategoryDataIntegrity, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{lookupErr: errors.Newf("upstream failed").
				Category(tt.category).Build()}
			_, e := newTestController(svc)
			rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"x y z 12"}`)

			require.Equal(t, tt.want, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.CorrelationID)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestGetMarketDataErrorMessagesDistinguishCauses(t *testing.T) {
	t.Parallel()

	notFound := &fakeService{lookupErr: errors.Newf("no match").
		Category(errors.CategoryNotFound).Build()}
	_, e := newTestController(notFound)
	rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"nowhere"}`)
	assert.Contains(t, rec.Body.String(), "not recognized")

	transient := &fakeService{lookupErr: errors.Newf("503").
		Category(errors.CategoryNetwork).Build()}
	_, e = newTestController(transient)
	rec = postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":"somewhere"}`)
	assert.Contains(t, rec.Body.String(), "try again")
}

func TestGetMarketDataMalformedBody(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{record: testRecord()})
	rec := postJSON(e, http.MethodPost, "/api/v1/market-data", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCache(t *testing.T) {
	t.Parallel()

	svc := &fakeService{addresses: []string{"456 oak ave", "123 main st springfield"}}
	_, e := newTestController(svc)
	rec := postJSON(e, http.MethodGet, "/api/v1/market-data/cache", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CacheListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{"456 oak ave", "123 main st springfield"}, resp.Addresses)
}

func TestListCacheEmpty(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{})
	rec := postJSON(e, http.MethodGet, "/api/v1/market-data/cache", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"addresses":[],"count":0}`, rec.Body.String())
}

func TestDeleteCacheEntry(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{})
	rec := postJSON(e, http.MethodDelete, "/api/v1/market-data/cache", `{"address":"123 Main St"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteCacheEntryAbsent(t *testing.T) {
	t.Parallel()

	svc := &fakeService{deleteErr: errors.Newf("no cache entry").
		Category(errors.CategoryNotFound).Build()}
	_, e := newTestController(svc)
	rec := postJSON(e, http.MethodDelete, "/api/v1/market-data/cache", `{"address":"123 Main St"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	_, e := newTestController(&fakeService{})
	rec := postJSON(e, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
}
