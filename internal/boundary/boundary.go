// Package boundary looks up Census geography boundary attributes from the
// TIGERweb ArcGIS REST services. The pipeline uses it for land area, which
// feeds population density.
package boundary

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/httpclient"
)

const component = "boundary"

const (
	tractQueryPath  = "/Tracts_Blocks/MapServer/0/query"
	countyQueryPath = "/State_County/MapServer/1/query"
)

// Area describes the land and water area of one geography unit in square
// meters, as published by TIGERweb.
type Area struct {
	GeoID             string  `json:"geoid"`
	LandAreaSqMeters  float64 `json:"land_area_sq_meters"`
	WaterAreaSqMeters float64 `json:"water_area_sq_meters"`
}

// arcgisResponse models the subset of an ArcGIS REST query response this
// client consumes. ArcGIS reports errors in-band with a 200 status.
type arcgisResponse struct {
	Features []struct {
		Attributes struct {
			GeoID     string  `json:"GEOID"`
			AreaLand  float64 `json:"AREALAND"`
			AreaWater float64 `json:"AREAWATER"`
		} `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client queries TIGERweb for boundary attributes.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// New creates a TIGERweb boundary client.
func New(baseURL string, httpClient *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger.With("service", component),
	}
}

// FetchArea retrieves the land and water area for the resolved geography.
// Tract-level references query the tract layer with the full 11-digit
// GEOID; county-level references query the county layer.
func (c *Client) FetchArea(ctx context.Context, geo *geocoder.GeographyReference) (*Area, error) {
	path := countyQueryPath
	geoid := geo.StateFIPS + geo.CountyFIPS
	if geo.Level == geocoder.LevelTract && geo.TractFIPS != "" {
		path = tractQueryPath
		geoid = geo.StateFIPS + geo.CountyFIPS + geo.TractFIPS
	}

	q := url.Values{}
	q.Set("where", "GEOID='"+geoid+"'")
	q.Set("outFields", "GEOID,AREALAND,AREAWATER")
	q.Set("returnGeometry", "false")
	q.Set("f", "json")

	var resp arcgisResponse
	if err := c.http.GetJSON(ctx, c.baseURL+path+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, errors.Newf("TIGERweb query failed: %s", resp.Error.Message).
			Category(errors.CategoryNetwork).
			Context("arcgis_code", resp.Error.Code).
			Context("geoid", geoid).
			Component(component).
			Build()
	}

	if len(resp.Features) == 0 {
		return nil, errors.Newf("no boundary feature for GEOID %s", geoid).
			Category(errors.CategoryNotFound).
			Context("geoid", geoid).
			Component(component).
			Build()
	}

	attrs := resp.Features[0].Attributes
	c.logger.Debug("boundary area fetched",
		"geoid", attrs.GeoID,
		"land_sq_m", attrs.AreaLand)

	return &Area{
		GeoID:             attrs.GeoID,
		LandAreaSqMeters:  attrs.AreaLand,
		WaterAreaSqMeters: attrs.AreaWater,
	}, nil
}
