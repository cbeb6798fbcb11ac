// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "marketdata")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/marketdata.log")
	viper.SetDefault("main.log.level", "info")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("geocoder.locationendpoint", "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress")
	viper.SetDefault("geocoder.geographyendpoint", "https://geocoding.geo.census.gov/geocoder/geographies/coordinates")
	viper.SetDefault("geocoder.benchmark", "Public_AR_Current")
	viper.SetDefault("geocoder.vintage", "Current_Current")
	viper.SetDefault("geocoder.timeout", 10*time.Second)
	viper.SetDefault("geocoder.cachettl", time.Hour)

	viper.SetDefault("census.apikey", "")
	viper.SetDefault("census.baseurl", "https://api.census.gov/data")
	viper.SetDefault("census.tigerweburl", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb")
	viper.SetDefault("census.acsyear", 2023)
	viper.SetDefault("census.trendyears", []int{2015, 2016, 2017, 2018, 2019, 2021, 2022, 2023})
	viper.SetDefault("census.timeout", 10*time.Second)
	viper.SetDefault("census.ratelimit", 5.0)
	viper.SetDefault("census.rateburst", 10)

	viper.SetDefault("walkability.enabled", true)
	viper.SetDefault("walkability.apikey", "")
	viper.SetDefault("walkability.endpoint", "https://api.walkscore.com/score")
	viper.SetDefault("walkability.timeout", 10*time.Second)

	viper.SetDefault("pipeline.requestbudget", 30*time.Second)
	viper.SetDefault("pipeline.clienttimeout", 10*time.Second)
	viper.SetDefault("pipeline.maxretries", 3)
	viper.SetDefault("pipeline.retrywaitmin", 500*time.Millisecond)
	viper.SetDefault("pipeline.retrywaitmax", 4*time.Second)
	viper.SetDefault("pipeline.projectionyears", 5)
	viper.SetDefault("pipeline.growthwindow", 5)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "marketdata.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "marketdata")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "marketdata")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
