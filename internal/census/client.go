// Package census wraps the Census Bureau data APIs: ACS 5-year detailed
// tables for demographics and population trends, and the population
// estimates program for county components of change.
//
// The data API returns tables as a JSON array of rows where the first row
// is the header. Values arrive as strings or null regardless of type, and
// missing observations use large negative sentinels. Both quirks are
// normalized here so the rest of the pipeline sees typed optional values.
package census

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/httpclient"
)

const component = "census"

// ACS annotates missing observations with sentinel values at or below this
// threshold (-666666666 and friends).
const sentinelThreshold = -111111111

// Client queries the Census data API.
type Client struct {
	settings conf.CensusSettings
	http     *httpclient.Client
	logger   *slog.Logger
}

// New creates a Census data API client.
func New(settings conf.CensusSettings, httpClient *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		settings: settings,
		http:     httpClient,
		logger:   logger.With("service", component),
	}
}

// table is a parsed data API response: one map per data row, keyed by the
// header row. Numeric strings stay raw; typed access goes through the row
// helpers.
type table []map[string]*string

// row returns the first data row, which is all the callers here need:
// every query in this package is constrained to a single geography.
func (t table) row() (map[string]*string, error) {
	if len(t) == 0 {
		return nil, errors.Newf("empty result table").
			Category(errors.CategoryDataUnavailable).
			Component(component).
			Build()
	}
	return t[0], nil
}

// getTable performs a data API query and parses the array-of-rows response.
func (c *Client) getTable(ctx context.Context, dataset string, year int, variables []string, forClause, inClause string) (table, error) {
	q := url.Values{}
	q.Set("get", strings.Join(variables, ","))
	q.Set("for", forClause)
	if inClause != "" {
		q.Set("in", inClause)
	}
	if c.settings.APIKey != "" {
		q.Set("key", c.settings.APIKey)
	}

	endpoint := c.settings.BaseURL + "/" + strconv.Itoa(year) + "/" + dataset + "?" + q.Encode()

	var raw [][]*string
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	if len(raw) < 2 {
		return nil, errors.Newf("data API returned no rows for %s %d", dataset, year).
			Category(errors.CategoryDataUnavailable).
			Context("dataset", dataset).
			Context("year", year).
			Component(component).
			Build()
	}

	header := raw[0]
	rows := make(table, 0, len(raw)-1)
	for _, rawRow := range raw[1:] {
		if len(rawRow) != len(header) {
			return nil, errors.Newf("row width %d does not match header width %d", len(rawRow), len(header)).
				Category(errors.CategoryDataIntegrity).
				Context("dataset", dataset).
				Component(component).
				Build()
		}
		row := make(map[string]*string, len(header))
		for i, name := range header {
			if name == nil {
				continue
			}
			row[*name] = rawRow[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// numeric converts a raw table cell to a float, mapping nulls and ACS
// sentinel values to nil.
func numeric(row map[string]*string, variable string) *float64 {
	cell, ok := row[variable]
	if !ok || cell == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*cell), 64)
	if err != nil {
		return nil
	}
	if v <= sentinelThreshold {
		return nil
	}
	return &v
}

// sumNumeric adds the named variables, treating missing values as zero.
// Returns nil when every variable is missing.
func sumNumeric(row map[string]*string, variables []string) *float64 {
	var total float64
	found := false
	for _, v := range variables {
		if val := numeric(row, v); val != nil {
			total += *val
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}

// text returns a string cell, or "" when absent.
func text(row map[string]*string, variable string) string {
	if cell, ok := row[variable]; ok && cell != nil {
		return *cell
	}
	return ""
}

// geographyClauses builds the for/in clauses for the resolved geography.
func geographyClauses(geo *geocoder.GeographyReference) (forClause, inClause string) {
	if geo.Level == geocoder.LevelTract && geo.TractFIPS != "" {
		return "tract:" + geo.TractFIPS, "state:" + geo.StateFIPS + " county:" + geo.CountyFIPS
	}
	return "county:" + geo.CountyFIPS, "state:" + geo.StateFIPS
}
