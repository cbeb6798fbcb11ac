// Package conf loads and validates the application configuration from a
// YAML config file and environment variables using viper.
package conf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the full application configuration.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string // name of this marketdata node
		Log  LogConfig
	}

	WebServer struct {
		Enabled bool   // true to enable the HTTP API
		Host    string // listen address
		Port    string // listen port
		Debug   bool
	}

	Geocoder GeocoderSettings // Census geocoder
	Census   CensusSettings   // ACS / PEP / TIGERweb upstreams

	Walkability WalkabilitySettings

	Pipeline PipelineSettings // fan-out, derivation and cache behavior

	Output struct {
		SQLite struct {
			Enabled bool   // true to store the cache in sqlite
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to store the cache in mysql
			Username string
			Password string
			Database string
			Host     string
			Port     string
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
	Level   string // debug, info, warn, error
}

// GeocoderSettings configures the two-step Census geocoder.
type GeocoderSettings struct {
	LocationEndpoint  string        // address -> coordinates
	GeographyEndpoint string        // coordinates -> FIPS
	Benchmark         string        // Census geocoder benchmark id
	Vintage           string        // Census geocoder vintage id
	Timeout           time.Duration // per-request timeout
	CacheTTL          time.Duration // in-process result cache
}

// CensusSettings configures the Census data API clients.
type CensusSettings struct {
	APIKey      string        // api.census.gov key
	BaseURL     string        // https://api.census.gov/data
	TigerWebURL string        // TIGERweb ArcGIS REST base
	ACSYear     int           // latest ACS 5-year vintage
	TrendYears  []int         // ACS years fetched for the population trend
	Timeout     time.Duration // per-request timeout
	RateLimit   float64       // requests per second against api.census.gov
	RateBurst   int
}

// WalkabilitySettings configures the Walk Score client.
type WalkabilitySettings struct {
	Enabled  bool
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// PipelineSettings configures fan-out and metric derivation.
type PipelineSettings struct {
	RequestBudget   time.Duration // wall-clock ceiling for a cold request
	ClientTimeout   time.Duration // per upstream call inside the fan-out
	MaxRetries      int           // attempts per upstream call
	RetryWaitMin    time.Duration // backoff floor
	RetryWaitMax    time.Duration // backoff ceiling
	ProjectionYears int           // horizon of the population projection
	GrowthWindow    int           // years used for the CAGR window
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings instance and stores it as the active configuration.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the active settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the
// configuration file. A missing config file is not an error; defaults and
// environment variables carry the configuration.
func initViper() error {
	viper.SetConfigName("marketdata")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/marketdata")
	viper.AddConfigPath("/etc/marketdata")

	viper.SetEnvPrefix("marketdata")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}
