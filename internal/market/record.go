// Package market implements the address-to-market-record aggregation
// pipeline: normalization, concurrent upstream fan-out, derived growth
// metrics, and the persistent address cache in front of it all.
package market

import (
	"time"

	"github.com/capmatch/marketdata/internal/geocoder"
)

// TrendPoint is one point of a population series. Projected points carry
// the IsProjection marker so consumers can split observed history from
// the extrapolation.
type TrendPoint struct {
	Year         int  `json:"year"`
	Population   int  `json:"population"`
	IsProjection bool `json:"is_projection"`
}

// Identity names the geography a record describes.
type Identity struct {
	SearchAddress     string                   `json:"search_address"`
	NormalizedAddress string                   `json:"normalized_address"`
	MatchedAddress    string                   `json:"matched_address,omitempty"`
	GeographyName     string                   `json:"geography_name"`
	GeographyLevel    geocoder.GeographyLevel  `json:"geography_level"`
	DataYear          int                      `json:"data_year"`
	GeneratedAt       time.Time                `json:"generated_at"`
}

// Location carries the resolved coordinates and, when the boundary
// lookup succeeded, the land and water area of the geography.
type Location struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	StateFIPS        string   `json:"state_fips"`
	CountyFIPS       string   `json:"county_fips"`
	TractFIPS        string   `json:"tract_fips,omitempty"`
	LandAreaSqMeters *float64 `json:"land_area_sq_meters,omitempty"`
	WaterAreaSqMeters *float64 `json:"water_area_sq_meters,omitempty"`
}

// PopulationSection holds current population totals and age structure.
// Total population is mandatory for the pipeline to succeed; everything
// else degrades to null independently.
type PopulationSection struct {
	Total     int      `json:"total"`
	MedianAge *float64 `json:"median_age,omitempty"`

	MalePercent   *float64 `json:"male_percent,omitempty"`
	FemalePercent *float64 `json:"female_percent,omitempty"`

	AgeUnder18Percent *float64 `json:"age_under_18_percent,omitempty"`
	Age18to34Percent  *float64 `json:"age_18_to_34_percent,omitempty"`
	Age35to64Percent  *float64 `json:"age_35_to_64_percent,omitempty"`
	Age65PlusPercent  *float64 `json:"age_65_plus_percent,omitempty"`
}

// GrowthSection holds derived population growth metrics over the
// configured window.
type GrowthSection struct {
	CAGRPercent    *float64 `json:"cagr_percent,omitempty"`
	YoYPercent     *float64 `json:"yoy_percent,omitempty"`
	AbsoluteChange *int     `json:"absolute_change,omitempty"`
	PeriodYears    int      `json:"period_years"`
}

// MigrationSection holds county-level components-of-change migration
// estimates. Absent entirely for tract-only geographies where the
// estimates program has no data.
type MigrationSection struct {
	Year                   int      `json:"year"`
	DomesticMigration      *float64 `json:"domestic_migration,omitempty"`
	InternationalMigration *float64 `json:"international_migration,omitempty"`
	NetMigration           *float64 `json:"net_migration,omitempty"`
}

// NaturalIncreaseSection holds county-level births and deaths.
type NaturalIncreaseSection struct {
	Year            int      `json:"year"`
	Births          *float64 `json:"births,omitempty"`
	Deaths          *float64 `json:"deaths,omitempty"`
	NaturalIncrease *float64 `json:"natural_increase,omitempty"`
}

// DensitySection holds population density and its change over the
// growth window.
type DensitySection struct {
	PeopleSqMile  *float64 `json:"people_sq_mile,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// DemographicsSection holds income, education, and household structure.
type DemographicsSection struct {
	MedianHouseholdIncome    *float64 `json:"median_household_income,omitempty"`
	BachelorsOrHigherPercent *float64 `json:"bachelors_or_higher_percent,omitempty"`

	TotalHouseholds           *float64 `json:"total_households,omitempty"`
	FamilyHouseholdPercent    *float64 `json:"family_household_percent,omitempty"`
	MarriedCouplePercent      *float64 `json:"married_couple_percent,omitempty"`
	NonFamilyHouseholdPercent *float64 `json:"non_family_household_percent,omitempty"`
	AvgHouseholdSize          *float64 `json:"avg_household_size,omitempty"`

	WhiteNonHispanicPercent *float64 `json:"white_non_hispanic_percent,omitempty"`
	BlackNonHispanicPercent *float64 `json:"black_non_hispanic_percent,omitempty"`
	AsianNonHispanicPercent *float64 `json:"asian_non_hispanic_percent,omitempty"`
	HispanicPercent         *float64 `json:"hispanic_percent,omitempty"`
	OtherNonHispanicPercent *float64 `json:"other_non_hispanic_percent,omitempty"`
}

// HousingSection holds tenure, value, rent, and vacancy.
type HousingSection struct {
	OwnerOccupiedPercent  *float64 `json:"owner_occupied_percent,omitempty"`
	RenterOccupiedPercent *float64 `json:"renter_occupied_percent,omitempty"`
	MedianHomeValue       *float64 `json:"median_home_value,omitempty"`
	MedianGrossRent       *float64 `json:"median_gross_rent,omitempty"`
	MedianYearBuilt       *float64 `json:"median_year_built,omitempty"`
	VacancyRatePercent    *float64 `json:"vacancy_rate_percent,omitempty"`

	// Standard vacancy rates: units for rent over the rental inventory
	// (renter occupied + for rent), and likewise for owner units.
	RentalVacancyRatePercent    *float64 `json:"rental_vacancy_rate_percent,omitempty"`
	HomeownerVacancyRatePercent *float64 `json:"homeowner_vacancy_rate_percent,omitempty"`
}

// WalkabilitySection holds the two Walk Score values. Either may be
// null when the provider has no nearby data.
type WalkabilitySection struct {
	WalkScore *int `json:"walk_score,omitempty"`
	BikeScore *int `json:"bike_score,omitempty"`
}

// TrendSection holds the observed population series, the projected
// continuation, and the benchmark series for wider geographies.
type TrendSection struct {
	Historical []TrendPoint `json:"historical"`
	Projection []TrendPoint `json:"projection,omitempty"`

	County   []TrendPoint `json:"county,omitempty"`
	State    []TrendPoint `json:"state,omitempty"`
	National []TrendPoint `json:"national,omitempty"`
}

// MarketRecord is the assembled output of one pipeline run. Section
// pointers are nil when the corresponding upstream client failed; only
// Identity, Location, and Population are guaranteed on a successful
// run. A record is immutable once cached; a later run for the same
// address replaces it wholesale.
type MarketRecord struct {
	Identity Identity `json:"identity"`
	Location Location `json:"location"`

	Population      *PopulationSection      `json:"population"`
	Growth          *GrowthSection          `json:"growth,omitempty"`
	Migration       *MigrationSection       `json:"migration,omitempty"`
	NaturalIncrease *NaturalIncreaseSection `json:"natural_increase,omitempty"`
	Density         *DensitySection         `json:"density,omitempty"`
	Demographics    *DemographicsSection    `json:"demographics,omitempty"`
	Housing         *HousingSection         `json:"housing,omitempty"`
	Walkability     *WalkabilitySection     `json:"walkability,omitempty"`
	Trend           *TrendSection           `json:"trend,omitempty"`
}

// percentOf returns part/whole as a percentage, or nil when either
// input is missing, the denominator is not positive, or the result
// falls outside [0,100].
func percentOf(part, whole *float64) *float64 {
	if part == nil || whole == nil || *whole <= 0 {
		return nil
	}
	pct := *part / *whole * 100
	if pct < 0 || pct > 100 {
		return nil
	}
	return &pct
}

// sumOf adds two optional values, nil when either is missing.
func sumOf(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	s := *a + *b
	return &s
}
