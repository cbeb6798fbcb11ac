package census

import (
	"context"

	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
)

// pepDataset is the population estimates components-of-change dataset path.
const pepDataset = "pep/components"

// Components-of-change variables.
const (
	varDomesticMig      = "DOMESTICMIG"
	varInternationalMig = "INTERNATIONALMIG"
	varNetMig           = "NETMIG"
	varBirths           = "BIRTHS"
	varDeaths           = "DEATHS"
	varNaturalInc       = "NATURALINC"
)

// FetchComponents retrieves county-level components of population change:
// migration flows and natural increase. The estimates program publishes
// these at county level only, so a tract-level geography is queried for
// its parent county.
func (c *Client) FetchComponents(ctx context.Context, geo *geocoder.GeographyReference) (*Components, error) {
	variables := []string{
		varDomesticMig, varInternationalMig, varNetMig,
		varBirths, varDeaths, varNaturalInc,
	}

	forClause := "county:" + geo.CountyFIPS
	inClause := "state:" + geo.StateFIPS

	tbl, err := c.getTable(ctx, pepDataset, c.settings.ACSYear, variables, forClause, inClause)
	if err != nil {
		return nil, err
	}
	row, err := tbl.row()
	if err != nil {
		return nil, err
	}

	return &Components{
		Year:                   c.settings.ACSYear,
		DomesticMigration:      numeric(row, varDomesticMig),
		InternationalMigration: numeric(row, varInternationalMig),
		NetMigration:           numeric(row, varNetMig),
		Births:                 numeric(row, varBirths),
		Deaths:                 numeric(row, varDeaths),
		NaturalIncrease:        numeric(row, varNaturalInc),
	}, nil
}

func errNoPopulation(year int, forClause string) error {
	return errors.Newf("no population value for %s in %d", forClause, year).
		Category(errors.CategoryDataUnavailable).
		Context("year", year).
		Context("geography", forClause).
		Component(component).
		Build()
}
