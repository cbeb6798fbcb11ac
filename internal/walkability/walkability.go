// Package walkability fetches walk and bike scores for a coordinate from
// the Walk Score API. The section is always optional: a missing key or a
// failed lookup nulls the scores, never the request.
package walkability

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/httpclient"
)

const component = "walkability"

// Scores holds the two walkability metrics. Either may be absent; the
// upstream does not publish a bike score for every location.
type Scores struct {
	WalkScore *int `json:"walk_score,omitempty"`
	BikeScore *int `json:"bike_score,omitempty"`
}

// walkScoreResponse models the Walk Score API payload. Status 1 is
// success; every other status is an in-band error.
type walkScoreResponse struct {
	Status    int    `json:"status"`
	WalkScore *int   `json:"walkscore"`
	Desc      string `json:"description"`
	Bike      *struct {
		Score *int `json:"score"`
	} `json:"bike"`
}

// Walk Score in-band status codes that mean "no score for this location".
const (
	statusSuccess      = 1
	statusScoreQueued  = 2
	statusNoNearbyData = 30
)

// Client queries the Walk Score API.
type Client struct {
	settings conf.WalkabilitySettings
	http     *httpclient.Client
	logger   *slog.Logger
}

// New creates a Walk Score client.
func New(settings conf.WalkabilitySettings, httpClient *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		settings: settings,
		http:     httpClient,
		logger:   logger.With("service", component),
	}
}

// FetchScores retrieves walk and bike scores for a coordinate. The address
// improves upstream matching but the coordinate decides the result.
func (c *Client) FetchScores(ctx context.Context, address string, lat, lon float64) (*Scores, error) {
	if !c.settings.Enabled {
		return nil, errors.Newf("walkability client is disabled").
			Category(errors.CategoryConfiguration).
			Component(component).
			Build()
	}
	if c.settings.APIKey == "" {
		return nil, errors.Newf("Walk Score API key not configured").
			Category(errors.CategoryConfiguration).
			Component(component).
			Build()
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("address", address)
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("bike", "1")
	q.Set("wsapikey", c.settings.APIKey)

	var resp walkScoreResponse
	if err := c.http.GetJSON(ctx, c.settings.Endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusSuccess:
		// fall through to mapping
	case statusScoreQueued, statusNoNearbyData:
		c.logger.Debug("no walkability score for location",
			"status", resp.Status, "lat", lat, "lon", lon)
		return &Scores{}, nil
	default:
		return nil, errors.Newf("Walk Score API returned status %d", resp.Status).
			Category(errors.CategoryNetwork).
			Context("ws_status", resp.Status).
			Component(component).
			Build()
	}

	scores := &Scores{WalkScore: resp.WalkScore}
	if resp.Bike != nil {
		scores.BikeScore = resp.Bike.Score
	}

	c.logger.Debug("walkability scores fetched",
		"walk", scores.WalkScore, "bike", scores.BikeScore, "description", resp.Desc)

	return scores, nil
}
