// Package geocoder resolves free-text U.S. addresses to coordinates and
// Census FIPS geography via the Census Bureau geocoding service. Resolution
// is a two-step process: address -> coordinates, then coordinates -> FIPS.
package geocoder

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/httpclient"
)

const component = "geocoder"

// Client resolves addresses against the Census geocoder. Resolution is
// stateless upstream, so successful results are cached in-process.
type Client struct {
	settings conf.GeocoderSettings
	http     *httpclient.Client
	cache    *cache.Cache
	logger   *slog.Logger
}

// New creates a geocoder client.
func New(settings conf.GeocoderSettings, httpClient *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		settings: settings,
		http:     httpClient,
		cache:    cache.New(settings.CacheTTL, settings.CacheTTL*2),
		logger:   logger.With("service", component),
	}
}

// Resolve geocodes an address and returns its Census geography. When no
// tract matches the coordinates the reference degrades to county level;
// when no county matches either, the error carries CategoryNotFound.
func (c *Client) Resolve(ctx context.Context, address string) (*GeographyReference, error) {
	if cached, found := c.cache.Get(address); found {
		if geo, ok := cached.(*GeographyReference); ok {
			c.logger.Debug("geocoder cache hit", "address", address)
			return geo, nil
		}
	}

	lat, lon, matched, err := c.locate(ctx, address)
	if err != nil {
		return nil, err
	}

	geo, err := c.lookupGeography(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	geo.MatchedAddress = matched

	c.cache.Set(address, geo, cache.DefaultExpiration)

	c.logger.Info("address resolved",
		"address", address,
		"state_fips", geo.StateFIPS,
		"county_fips", geo.CountyFIPS,
		"tract_fips", geo.TractFIPS,
		"level", geo.Level)

	return geo, nil
}

// locate turns an address into coordinates via the onelineaddress endpoint.
func (c *Client) locate(ctx context.Context, address string) (lat, lon float64, matched string, err error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("benchmark", c.settings.Benchmark)
	q.Set("address", address)

	var resp locationResponse
	if err := c.http.GetJSON(ctx, c.settings.LocationEndpoint+"?"+q.Encode(), &resp); err != nil {
		return 0, 0, "", err
	}

	if len(resp.Result.AddressMatches) == 0 {
		return 0, 0, "", errors.Newf("address could not be geocoded: %s", address).
			Category(errors.CategoryNotFound).
			Context("address", address).
			Component(component).
			Build()
	}

	match := resp.Result.AddressMatches[0]
	return match.Coordinates.Y, match.Coordinates.X, match.MatchedAddress, nil
}

// lookupGeography turns coordinates into FIPS codes via the
// geographies/coordinates endpoint.
func (c *Client) lookupGeography(ctx context.Context, lat, lon float64) (*GeographyReference, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("benchmark", c.settings.Benchmark)
	q.Set("vintage", c.settings.Vintage)
	q.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))

	var resp geographyResponse
	if err := c.http.GetJSON(ctx, c.settings.GeographyEndpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	geos := resp.Result.Geographies
	if len(geos.Counties) == 0 {
		return nil, errors.Newf("no county found for coordinates %.4f,%.4f", lat, lon).
			Category(errors.CategoryNotFound).
			Component(component).
			Build()
	}
	county := geos.Counties[0]

	geo := &GeographyReference{
		Latitude:   lat,
		Longitude:  lon,
		StateFIPS:  county.State,
		CountyFIPS: county.County,
		CountyName: county.Name,
		Level:      LevelCounty,
	}

	for _, state := range geos.States {
		if state.State == county.State {
			geo.StateName = state.Name
			break
		}
	}

	// Tract is best effort; its absence degrades the level, not the lookup.
	if len(geos.Tracts) > 0 {
		tract := geos.Tracts[0]
		geo.TractFIPS = tract.Tract
		geo.Level = LevelTract
	} else {
		c.logger.Warn("no tract match, degrading to county level",
			"lat", lat, "lon", lon, "county_fips", county.County)
	}

	return geo, nil
}
