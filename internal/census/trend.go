package census

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/capmatch/marketdata/internal/geocoder"
)

// trendSeries identifies one population series inside a TrendBundle.
type trendSeries int

const (
	seriesPrimary trendSeries = iota
	seriesCounty
	seriesState
	seriesNational
)

// FetchTrend retrieves the historical population series for the resolved
// geography plus county, state and national benchmarks. Every year of
// every series is fetched concurrently; a failed year is dropped from its
// series and a fully failed benchmark series comes back nil. Only the
// primary series matters for growth metrics, and even its absence is left
// for the aggregator to judge.
func (c *Client) FetchTrend(ctx context.Context, geo *geocoder.GeographyReference) (*TrendBundle, error) {
	type seriesTarget struct {
		series    trendSeries
		forClause string
		inClause  string
	}

	primaryFor, primaryIn := geographyClauses(geo)
	targets := []seriesTarget{
		{seriesPrimary, primaryFor, primaryIn},
		{seriesState, "state:" + geo.StateFIPS, ""},
		{seriesNational, "us:1", ""},
	}
	// The county benchmark only adds information when the primary series
	// is tract level.
	if geo.Level == geocoder.LevelTract {
		targets = append(targets, seriesTarget{seriesCounty, "county:" + geo.CountyFIPS, "state:" + geo.StateFIPS})
	}

	type slot struct {
		series trendSeries
		point  TrendPoint
		ok     bool
	}
	slots := make([]slot, len(targets)*len(c.settings.TrendYears))

	var wg sync.WaitGroup
	for ti, target := range targets {
		for yi, year := range c.settings.TrendYears {
			wg.Add(1)
			go func(idx int, target seriesTarget, year int) {
				defer wg.Done()
				pop, err := c.fetchPopulationForYear(ctx, year, target.forClause, target.inClause)
				if err != nil {
					c.logger.Debug("population year unavailable, dropping from trend",
						"year", year, "for", target.forClause, "error", err)
					return
				}
				slots[idx] = slot{series: target.series, point: TrendPoint{Year: year, Population: pop}, ok: true}
			}(ti*len(c.settings.TrendYears)+yi, target, year)
		}
	}
	wg.Wait()

	bundle := &TrendBundle{}
	for _, s := range slots {
		if !s.ok {
			continue
		}
		switch s.series {
		case seriesPrimary:
			bundle.Primary = append(bundle.Primary, s.point)
		case seriesCounty:
			bundle.County = append(bundle.County, s.point)
		case seriesState:
			bundle.State = append(bundle.State, s.point)
		case seriesNational:
			bundle.National = append(bundle.National, s.point)
		}
	}

	for _, series := range []*[]TrendPoint{&bundle.Primary, &bundle.County, &bundle.State, &bundle.National} {
		sort.Slice(*series, func(i, j int) bool {
			return (*series)[i].Year < (*series)[j].Year
		})
	}

	c.logger.Info("population trend assembled",
		"primary_points", len(bundle.Primary),
		"county_points", len(bundle.County),
		"state_points", len(bundle.State),
		"national_points", len(bundle.National))

	return bundle, nil
}

// fetchPopulationForYear retrieves the B01003 total population for one
// geography and year.
func (c *Client) fetchPopulationForYear(ctx context.Context, year int, forClause, inClause string) (int, error) {
	tbl, err := c.getTable(ctx, acsDataset, year, []string{varTotalPopulation}, forClause, inClause)
	if err != nil {
		return 0, err
	}
	row, err := tbl.row()
	if err != nil {
		return 0, err
	}
	pop := numeric(row, varTotalPopulation)
	if pop == nil {
		return 0, errNoPopulation(year, forClause)
	}
	return int(math.Round(*pop)), nil
}
