package census

// TrendPoint is one observed population value for a year.
type TrendPoint struct {
	Year       int `json:"year"`
	Population int `json:"population"`
}

// TrendBundle holds the population trend for the resolved geography plus
// benchmark series. Benchmark slices are nil when their fetches failed;
// the record degrades those sections rather than the request.
type TrendBundle struct {
	Primary  []TrendPoint
	County   []TrendPoint
	State    []TrendPoint
	National []TrendPoint
}

// Profile carries the raw ACS demographic values for one geography. All
// value fields are pointers: the ACS omits variables for some tracts, and
// sentinel values are normalized to nil at the client boundary.
type Profile struct {
	Name            string
	TotalPopulation *float64
	MedianAge       *float64

	MedianHouseholdIncome *float64
	Pop25Plus             *float64
	BachelorsOrHigher     *float64

	TotalHouseholds         *float64
	FamilyHouseholds        *float64
	MarriedCoupleHouseholds *float64
	NonFamilyHouseholds     *float64
	AvgHouseholdSize        *float64

	RaceTotal        *float64
	WhiteNonHispanic *float64
	BlackNonHispanic *float64
	AsianNonHispanic *float64
	Hispanic         *float64
	OtherNonHispanic *float64

	TenureTotal     *float64
	OwnerOccupied   *float64
	RenterOccupied  *float64
	MedianHomeValue *float64
	MedianGrossRent *float64
	MedianYearBuilt *float64
	OccupancyTotal  *float64
	VacantUnits     *float64
	VacantForRent   *float64
	VacantForSale   *float64

	Male   *float64
	Female *float64

	AgeUnder18 *float64
	Age18to34  *float64
	Age35to64  *float64
	Age65Plus  *float64
}

// Components carries one year of county-level components of population
// change from the population estimates program.
type Components struct {
	Year                   int      `json:"year"`
	DomesticMigration      *float64 `json:"domestic_migration,omitempty"`
	InternationalMigration *float64 `json:"international_migration,omitempty"`
	NetMigration           *float64 `json:"net_migration,omitempty"`
	Births                 *float64 `json:"births,omitempty"`
	Deaths                 *float64 `json:"deaths,omitempty"`
	NaturalIncrease        *float64 `json:"natural_increase,omitempty"`
}
