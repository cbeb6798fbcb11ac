package census

import (
	"context"
	"fmt"

	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
)

// acsDataset is the ACS 5-year detailed tables dataset path.
const acsDataset = "acs/acs5"

// ACS detailed-table variables for the demographic profile.
const (
	varTotalPopulation = "B01003_001E"
	varMedianAge       = "B01002_001E"
	varMedianIncome    = "B19013_001E"
	varPop25Plus       = "B15003_001E"

	varHouseholds       = "B11001_001E"
	varFamilyHouseholds = "B11001_002E"
	varMarriedCouple    = "B11001_003E"
	varNonFamily        = "B11001_007E"
	varAvgHouseholdSize = "B25010_001E"

	varRaceTotal = "B03002_001E"
	varWhiteNH   = "B03002_003E"
	varBlackNH   = "B03002_004E"
	varAsianNH   = "B03002_006E"
	varHispanic  = "B03002_012E"

	varTenureTotal     = "B25003_001E"
	varOwnerOccupied   = "B25003_002E"
	varRenterOccupied  = "B25003_003E"
	varMedianHomeValue = "B25077_001E"
	varMedianGrossRent = "B25064_001E"
	varMedianYearBuilt = "B25035_001E"
	varOccupancyTotal  = "B25002_001E"
	varVacantUnits     = "B25002_003E"
	varVacantForRent   = "B25004_002E"
	varVacantForSale   = "B25004_004E"

	varMaleTotal   = "B01001_002E"
	varFemaleTotal = "B01001_026E"
)

// Educational attainment, bachelor's degree and above.
var bachelorsVars = []string{"B15003_022E", "B15003_023E", "B15003_024E", "B15003_025E"}

// Non-Hispanic groups folded into "other": American Indian, Pacific
// Islander, some other race, two or more races.
var otherNHVars = []string{"B03002_005E", "B03002_007E", "B03002_008E", "B03002_009E"}

func profileVariables() []string {
	vars := []string{
		"NAME",
		varTotalPopulation, varMedianAge, varMedianIncome, varPop25Plus,
		varHouseholds, varFamilyHouseholds, varMarriedCouple, varNonFamily, varAvgHouseholdSize,
		varRaceTotal, varWhiteNH, varBlackNH, varAsianNH, varHispanic,
		varTenureTotal, varOwnerOccupied, varRenterOccupied,
		varMedianHomeValue, varMedianGrossRent, varMedianYearBuilt,
		varOccupancyTotal, varVacantUnits, varVacantForRent, varVacantForSale,
	}
	vars = append(vars, bachelorsVars...)
	return append(vars, otherNHVars...)
}

// b01001Range builds the B01001 sex-by-age variable names for a contiguous
// index range.
func b01001Range(from, to int) []string {
	vars := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		vars = append(vars, fmt.Sprintf("B01001_%03dE", i))
	}
	return vars
}

// Age bucket boundaries in the B01001 table. Male indices 3-25, female
// indices 27-49, offset by 24.
var (
	ageUnder18Vars = append(b01001Range(3, 6), b01001Range(27, 30)...)
	age18to34Vars  = append(b01001Range(7, 12), b01001Range(31, 36)...)
	age35to64Vars  = append(b01001Range(13, 19), b01001Range(37, 43)...)
	age65PlusVars  = append(b01001Range(20, 25), b01001Range(44, 49)...)
)

func ageSexVariables() []string {
	vars := []string{varMaleTotal, varFemaleTotal}
	vars = append(vars, ageUnder18Vars...)
	vars = append(vars, age18to34Vars...)
	vars = append(vars, age35to64Vars...)
	return append(vars, age65PlusVars...)
}

// FetchProfile retrieves the demographic profile for the resolved
// geography from the latest configured ACS year. This is the mandatory
// upstream section: a profile without a total population or geography name
// fails with CategoryDataUnavailable.
func (c *Client) FetchProfile(ctx context.Context, geo *geocoder.GeographyReference) (*Profile, error) {
	forClause, inClause := geographyClauses(geo)

	tbl, err := c.getTable(ctx, acsDataset, c.settings.ACSYear, profileVariables(), forClause, inClause)
	if err != nil {
		return nil, err
	}
	row, err := tbl.row()
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Name:            text(row, "NAME"),
		TotalPopulation: numeric(row, varTotalPopulation),
		MedianAge:       numeric(row, varMedianAge),

		MedianHouseholdIncome: numeric(row, varMedianIncome),
		Pop25Plus:             numeric(row, varPop25Plus),
		BachelorsOrHigher:     sumNumeric(row, bachelorsVars),

		TotalHouseholds:         numeric(row, varHouseholds),
		FamilyHouseholds:        numeric(row, varFamilyHouseholds),
		MarriedCoupleHouseholds: numeric(row, varMarriedCouple),
		NonFamilyHouseholds:     numeric(row, varNonFamily),
		AvgHouseholdSize:        numeric(row, varAvgHouseholdSize),

		RaceTotal:        numeric(row, varRaceTotal),
		WhiteNonHispanic: numeric(row, varWhiteNH),
		BlackNonHispanic: numeric(row, varBlackNH),
		AsianNonHispanic: numeric(row, varAsianNH),
		Hispanic:         numeric(row, varHispanic),
		OtherNonHispanic: sumNumeric(row, otherNHVars),

		TenureTotal:     numeric(row, varTenureTotal),
		OwnerOccupied:   numeric(row, varOwnerOccupied),
		RenterOccupied:  numeric(row, varRenterOccupied),
		MedianHomeValue: numeric(row, varMedianHomeValue),
		MedianGrossRent: numeric(row, varMedianGrossRent),
		MedianYearBuilt: numeric(row, varMedianYearBuilt),
		OccupancyTotal:  numeric(row, varOccupancyTotal),
		VacantUnits:     numeric(row, varVacantUnits),
		VacantForRent:   numeric(row, varVacantForRent),
		VacantForSale:   numeric(row, varVacantForSale),
	}

	if profile.TotalPopulation == nil || profile.Name == "" {
		return nil, errors.Newf("ACS profile is missing total population or geography name").
			Category(errors.CategoryDataUnavailable).
			Context("geography", forClause).
			Context("year", c.settings.ACSYear).
			Component(component).
			Build()
	}

	// Age and sex distribution ride along with the profile but degrade
	// independently; a failed B01001 query nulls the buckets only.
	if ageRow, err := c.fetchAgeSex(ctx, geo); err != nil {
		c.logger.Warn("age/sex distribution unavailable, continuing without it",
			"geography", forClause, "error", err)
	} else {
		profile.Male = numeric(ageRow, varMaleTotal)
		profile.Female = numeric(ageRow, varFemaleTotal)
		profile.AgeUnder18 = sumNumeric(ageRow, ageUnder18Vars)
		profile.Age18to34 = sumNumeric(ageRow, age18to34Vars)
		profile.Age35to64 = sumNumeric(ageRow, age35to64Vars)
		profile.Age65Plus = sumNumeric(ageRow, age65PlusVars)
	}

	return profile, nil
}

func (c *Client) fetchAgeSex(ctx context.Context, geo *geocoder.GeographyReference) (map[string]*string, error) {
	forClause, inClause := geographyClauses(geo)
	tbl, err := c.getTable(ctx, acsDataset, c.settings.ACSYear, ageSexVariables(), forClause, inClause)
	if err != nil {
		return nil, err
	}
	return tbl.row()
}
