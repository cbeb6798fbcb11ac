package market

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/capmatch/marketdata/internal/boundary"
	"github.com/capmatch/marketdata/internal/census"
	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/observability"
	"github.com/capmatch/marketdata/internal/walkability"
)

// ProfileFetcher supplies the current-year demographic profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, geo *geocoder.GeographyReference) (*census.Profile, error)
}

// TrendFetcher supplies the multi-year population series.
type TrendFetcher interface {
	FetchTrend(ctx context.Context, geo *geocoder.GeographyReference) (*census.TrendBundle, error)
}

// ComponentsFetcher supplies county-level components of change.
type ComponentsFetcher interface {
	FetchComponents(ctx context.Context, geo *geocoder.GeographyReference) (*census.Components, error)
}

// AreaFetcher supplies the geography's land and water area.
type AreaFetcher interface {
	FetchArea(ctx context.Context, geo *geocoder.GeographyReference) (*boundary.Area, error)
}

// ScoresFetcher supplies walkability scores for a coordinate.
type ScoresFetcher interface {
	FetchScores(ctx context.Context, address string, lat, lon float64) (*walkability.Scores, error)
}

// Aggregator fans out to the upstream clients for one resolved
// geography and merges their results into a MarketRecord.
type Aggregator struct {
	profiles    ProfileFetcher
	trends      TrendFetcher
	components  ComponentsFetcher
	areas       AreaFetcher
	scores      ScoresFetcher
	settings    conf.PipelineSettings
	dataYear    int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewAggregator wires the upstream clients into an Aggregator. The
// scores fetcher may be nil when walkability is disabled; metrics may
// be nil in tests.
func NewAggregator(
	profiles ProfileFetcher,
	trends TrendFetcher,
	components ComponentsFetcher,
	areas AreaFetcher,
	scores ScoresFetcher,
	pipeline conf.PipelineSettings,
	dataYear int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		profiles:   profiles,
		trends:     trends,
		components: components,
		areas:      areas,
		scores:     scores,
		settings:   pipeline,
		dataYear:   dataYear,
		metrics:    metrics,
		logger:     logger.With("service", "aggregator"),
	}
}

// fanOutResults collects each client's outcome. Every goroutine in the
// fan-out writes to its own field pair only, so the merge needs no
// locking.
type fanOutResults struct {
	profile    *census.Profile
	profileErr error

	trend    *census.TrendBundle
	trendErr error

	components    *census.Components
	componentsErr error

	area    *boundary.Area
	areaErr error

	scores    *walkability.Scores
	scoresErr error
}

// Assemble runs the concurrent fan-out for a resolved geography and
// builds the record. All clients are called concurrently and joined;
// a failed optional client leaves its record section nil. The profile
// fetch is mandatory: without a population total and geography name
// there is no record to build, and Assemble fails with a
// data-unavailable error.
func (a *Aggregator) Assemble(ctx context.Context, searchAddress, normalizedAddress string, geo *geocoder.GeographyReference) (*MarketRecord, error) {
	var (
		res fanOutResults
		wg  sync.WaitGroup
	)

	run := func(source string, fn func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.settings.ClientTimeout)
			defer cancel()
			start := time.Now()
			fn(callCtx)
			if a.metrics != nil {
				a.metrics.Upstream.RecordFetchDuration(source, time.Since(start).Seconds())
			}
		}()
	}

	run("acs", func(ctx context.Context) {
		res.profile, res.profileErr = a.profiles.FetchProfile(ctx, geo)
		a.observe("acs", res.profileErr)
	})
	run("trend", func(ctx context.Context) {
		res.trend, res.trendErr = a.trends.FetchTrend(ctx, geo)
		a.observe("trend", res.trendErr)
	})
	run("pep", func(ctx context.Context) {
		res.components, res.componentsErr = a.components.FetchComponents(ctx, geo)
		a.observe("pep", res.componentsErr)
	})
	run("boundary", func(ctx context.Context) {
		res.area, res.areaErr = a.areas.FetchArea(ctx, geo)
		a.observe("boundary", res.areaErr)
	})
	if a.scores != nil {
		run("walkability", func(ctx context.Context) {
			res.scores, res.scoresErr = a.scores.FetchScores(ctx, searchAddress, geo.Latitude, geo.Longitude)
			a.observe("walkability", res.scoresErr)
		})
	}

	wg.Wait()

	if res.profileErr != nil {
		return nil, errors.New(res.profileErr).
			Category(errors.CategoryDataUnavailable).
			Context("address", normalizedAddress).
			Component("aggregator").
			Build()
	}

	return a.buildRecord(searchAddress, normalizedAddress, geo, &res)
}

func (a *Aggregator) observe(source string, err error) {
	if a.metrics == nil {
		return
	}
	if err != nil {
		a.metrics.Upstream.RecordFetch(source, "error")
		a.metrics.Upstream.RecordFetchError(source, string(errors.CategoryOf(err)))
		return
	}
	a.metrics.Upstream.RecordFetch(source, "success")
}

// buildRecord merges the fan-out results. Each record section is
// populated from exactly one client; there is no cross-client
// fallback.
func (a *Aggregator) buildRecord(searchAddress, normalizedAddress string, geo *geocoder.GeographyReference, res *fanOutResults) (*MarketRecord, error) {
	profile := res.profile
	if profile.TotalPopulation == nil || *profile.TotalPopulation < 0 {
		return nil, errors.Newf("population total missing for %s", geo.Level).
			Category(errors.CategoryDataUnavailable).
			Context("address", normalizedAddress).
			Component("aggregator").
			Build()
	}
	total := int(*profile.TotalPopulation)

	record := &MarketRecord{
		Identity: Identity{
			SearchAddress:     searchAddress,
			NormalizedAddress: normalizedAddress,
			MatchedAddress:    geo.MatchedAddress,
			GeographyName:     profile.Name,
			GeographyLevel:    geo.Level,
			DataYear:          a.dataYear,
			GeneratedAt:       time.Now().UTC(),
		},
		Location: Location{
			Latitude:   geo.Latitude,
			Longitude:  geo.Longitude,
			StateFIPS:  geo.StateFIPS,
			CountyFIPS: geo.CountyFIPS,
			TractFIPS:  geo.TractFIPS,
		},
		Population:   buildPopulation(total, profile),
		Demographics: buildDemographics(profile),
		Housing:      buildHousing(profile),
	}

	if res.areaErr == nil && res.area != nil {
		record.Location.LandAreaSqMeters = &res.area.LandAreaSqMeters
		record.Location.WaterAreaSqMeters = &res.area.WaterAreaSqMeters
	} else if res.areaErr != nil {
		a.logger.Warn("boundary lookup failed, density unavailable", "error", res.areaErr)
	}

	if res.componentsErr == nil && res.components != nil {
		record.Migration = &MigrationSection{
			Year:                   res.components.Year,
			DomesticMigration:      res.components.DomesticMigration,
			InternationalMigration: res.components.InternationalMigration,
			NetMigration:           res.components.NetMigration,
		}
		record.NaturalIncrease = &NaturalIncreaseSection{
			Year:            res.components.Year,
			Births:          res.components.Births,
			Deaths:          res.components.Deaths,
			NaturalIncrease: res.components.NaturalIncrease,
		}
	} else if res.componentsErr != nil {
		a.logger.Warn("components of change unavailable", "error", res.componentsErr)
	}

	if res.scoresErr == nil && res.scores != nil {
		record.Walkability = &WalkabilitySection{
			WalkScore: res.scores.WalkScore,
			BikeScore: res.scores.BikeScore,
		}
	} else if res.scoresErr != nil {
		a.logger.Warn("walkability scores unavailable", "error", res.scoresErr)
	}

	if res.trendErr == nil && res.trend != nil {
		trendSection, growth, density, err := a.deriveTrend(total, res.trend, record.Location.LandAreaSqMeters)
		if err != nil {
			return nil, err
		}
		record.Trend = trendSection
		record.Growth = growth
		record.Density = density
	} else {
		if res.trendErr != nil {
			a.logger.Warn("population trend unavailable", "error", res.trendErr)
		}
		// density without change, derived from the current total alone
		if d := DensityPerSqMile(total, record.Location.LandAreaSqMeters); d != nil {
			record.Density = &DensitySection{PeopleSqMile: d}
		}
	}

	return record, nil
}

func buildPopulation(total int, p *census.Profile) *PopulationSection {
	sexTotal := p.TotalPopulation
	return &PopulationSection{
		Total:             total,
		MedianAge:         p.MedianAge,
		MalePercent:       percentOf(p.Male, sexTotal),
		FemalePercent:     percentOf(p.Female, sexTotal),
		AgeUnder18Percent: percentOf(p.AgeUnder18, sexTotal),
		Age18to34Percent:  percentOf(p.Age18to34, sexTotal),
		Age35to64Percent:  percentOf(p.Age35to64, sexTotal),
		Age65PlusPercent:  percentOf(p.Age65Plus, sexTotal),
	}
}

func buildDemographics(p *census.Profile) *DemographicsSection {
	return &DemographicsSection{
		MedianHouseholdIncome:     p.MedianHouseholdIncome,
		BachelorsOrHigherPercent:  percentOf(p.BachelorsOrHigher, p.Pop25Plus),
		TotalHouseholds:           p.TotalHouseholds,
		FamilyHouseholdPercent:    percentOf(p.FamilyHouseholds, p.TotalHouseholds),
		MarriedCouplePercent:      percentOf(p.MarriedCoupleHouseholds, p.TotalHouseholds),
		NonFamilyHouseholdPercent: percentOf(p.NonFamilyHouseholds, p.TotalHouseholds),
		AvgHouseholdSize:          p.AvgHouseholdSize,
		WhiteNonHispanicPercent:   percentOf(p.WhiteNonHispanic, p.RaceTotal),
		BlackNonHispanicPercent:   percentOf(p.BlackNonHispanic, p.RaceTotal),
		AsianNonHispanicPercent:   percentOf(p.AsianNonHispanic, p.RaceTotal),
		HispanicPercent:           percentOf(p.Hispanic, p.RaceTotal),
		OtherNonHispanicPercent:   percentOf(p.OtherNonHispanic, p.RaceTotal),
	}
}

func buildHousing(p *census.Profile) *HousingSection {
	return &HousingSection{
		OwnerOccupiedPercent:  percentOf(p.OwnerOccupied, p.TenureTotal),
		RenterOccupiedPercent: percentOf(p.RenterOccupied, p.TenureTotal),
		MedianHomeValue:       p.MedianHomeValue,
		MedianGrossRent:       p.MedianGrossRent,
		MedianYearBuilt:       p.MedianYearBuilt,
		VacancyRatePercent:    percentOf(p.VacantUnits, p.OccupancyTotal),

		RentalVacancyRatePercent:    percentOf(p.VacantForRent, sumOf(p.RenterOccupied, p.VacantForRent)),
		HomeownerVacancyRatePercent: percentOf(p.VacantForSale, sumOf(p.OwnerOccupied, p.VacantForSale)),
	}
}

// deriveTrend validates the observed series, runs the derivation
// functions over it, and materializes the projection sequence for the
// serialized record.
func (a *Aggregator) deriveTrend(total int, bundle *census.TrendBundle, landArea *float64) (*TrendSection, *GrowthSection, *DensitySection, error) {
	historical := toTrendPoints(bundle.Primary)
	if err := ValidateTrend(historical); err != nil {
		return nil, nil, nil, err
	}

	window := a.settings.GrowthWindow
	growth := &GrowthSection{
		CAGRPercent:    CAGR(historical, window),
		YoYPercent:     YoY(historical),
		AbsoluteChange: AbsoluteChange(historical, window),
		PeriodYears:    window,
	}

	density := &DensitySection{
		PeopleSqMile:  DensityPerSqMile(total, landArea),
		ChangePercent: DensityChangePercent(historical, window, landArea),
	}

	section := &TrendSection{
		Historical: historical,
		Projection: slices.Collect(Projection(historical, window, a.settings.ProjectionYears)),
		County:     toTrendPoints(bundle.County),
		State:      toTrendPoints(bundle.State),
		National:   toTrendPoints(bundle.National),
	}

	return section, growth, density, nil
}

func toTrendPoints(in []census.TrendPoint) []TrendPoint {
	if in == nil {
		return nil
	}
	out := make([]TrendPoint, len(in))
	for i, p := range in {
		out[i] = TrendPoint{Year: p.Year, Population: p.Population}
	}
	return out
}
