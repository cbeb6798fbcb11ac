package conf

import (
	"fmt"
	"slices"
)

// ValidateSettings checks the loaded configuration for values the pipeline
// cannot run with.
func ValidateSettings(settings *Settings) error {
	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		return fmt.Errorf("webserver.port must be set when the web server is enabled")
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one cache backend may be enabled, got both sqlite and mysql")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("a cache backend must be enabled, either sqlite or mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must be set")
	}

	if settings.Census.ACSYear < 2010 {
		return fmt.Errorf("census.acsyear %d predates the ACS 5-year series", settings.Census.ACSYear)
	}
	if len(settings.Census.TrendYears) == 0 {
		return fmt.Errorf("census.trendyears must not be empty")
	}
	if slices.Max(settings.Census.TrendYears) > settings.Census.ACSYear {
		return fmt.Errorf("census.trendyears may not exceed census.acsyear %d", settings.Census.ACSYear)
	}

	if settings.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline.maxretries must be at least 1")
	}
	if settings.Pipeline.ClientTimeout <= 0 {
		return fmt.Errorf("pipeline.clienttimeout must be positive")
	}
	if settings.Pipeline.ClientTimeout >= settings.Pipeline.RequestBudget {
		return fmt.Errorf("pipeline.clienttimeout %s must be below pipeline.requestbudget %s",
			settings.Pipeline.ClientTimeout, settings.Pipeline.RequestBudget)
	}
	if settings.Pipeline.ProjectionYears < 1 {
		return fmt.Errorf("pipeline.projectionyears must be at least 1")
	}
	if settings.Pipeline.GrowthWindow < 1 {
		return fmt.Errorf("pipeline.growthwindow must be at least 1")
	}

	return nil
}
