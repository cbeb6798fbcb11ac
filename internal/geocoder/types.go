package geocoder

// GeographyLevel identifies the Census geography unit a lookup resolved to.
type GeographyLevel string

const (
	LevelTract  GeographyLevel = "tract"
	LevelCounty GeographyLevel = "county"
)

// GeographyReference is the resolved geography for an address. FIPS codes
// are fixed-width numeric strings: state 2, county 3, tract 6 digits.
// TractFIPS is empty when Level is county.
type GeographyReference struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	StateFIPS  string         `json:"state_fips"`
	CountyFIPS string         `json:"county_fips"`
	TractFIPS  string         `json:"tract_fips,omitempty"`
	Level      GeographyLevel `json:"geography_level"`

	MatchedAddress string `json:"matched_address,omitempty"`
	CountyName     string `json:"county_name,omitempty"`
	StateName      string `json:"state_name,omitempty"`
}

// locationResponse is the shape of the Census geocoder onelineaddress
// endpoint.
type locationResponse struct {
	Result struct {
		AddressMatches []struct {
			MatchedAddress string `json:"matchedAddress"`
			Coordinates    struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// geographyResponse is the shape of the Census geocoder
// geographies/coordinates endpoint. Only the layers this service consumes
// are modeled; tract presence depends on the vintage and location.
type geographyResponse struct {
	Result struct {
		Geographies struct {
			Tracts []struct {
				GEOID  string `json:"GEOID"`
				State  string `json:"STATE"`
				County string `json:"COUNTY"`
				Tract  string `json:"TRACT"`
				Name   string `json:"NAME"`
			} `json:"Census Tracts"`
			Counties []struct {
				GEOID  string `json:"GEOID"`
				State  string `json:"STATE"`
				County string `json:"COUNTY"`
				Name   string `json:"NAME"`
			} `json:"Counties"`
			States []struct {
				State string `json:"STATE"`
				Name  string `json:"NAME"`
			} `json:"States"`
		} `json:"geographies"`
	} `json:"result"`
}
