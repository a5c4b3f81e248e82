package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Source drivers.
const (
	DriverArcGIS    = "arcgis"
	DriverPostGIS   = "postgis"
	DriverShapefile = "shapefile"
)

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	ArcGIS    ArcGISConfig    `yaml:"arcgis" mapstructure:"arcgis"`
	PostGIS   PostGISConfig   `yaml:"postgis" mapstructure:"postgis"`
	Shapefile ShapefileConfig `yaml:"shapefile" mapstructure:"shapefile"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig selects where census layers are read from.
type SourceConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
}

// ArcGISConfig configures the hosted feature service layers.
type ArcGISConfig struct {
	BlockGroupsURL string  `yaml:"block_groups_url" mapstructure:"block_groups_url"`
	IncomeURL      string  `yaml:"income_url" mapstructure:"income_url"`
	EducationURL   string  `yaml:"education_url" mapstructure:"education_url"`
	StoresURL      string  `yaml:"stores_url" mapstructure:"stores_url"`
	Token          string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	PageSize       int     `yaml:"page_size" mapstructure:"page_size"`
	ObjectIDField  string  `yaml:"object_id_field" mapstructure:"object_id_field"`
}

// PostGISConfig configures the database layers.
type PostGISConfig struct {
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	BlockGroupsTable string `yaml:"block_groups_table" mapstructure:"block_groups_table"`
	IncomeTable      string `yaml:"income_table" mapstructure:"income_table"`
	EducationTable   string `yaml:"education_table" mapstructure:"education_table"`
	StoresTable      string `yaml:"stores_table" mapstructure:"stores_table"`
}

// ShapefileConfig points at local .shp files, one per layer.
type ShapefileConfig struct {
	BlockGroups string `yaml:"block_groups" mapstructure:"block_groups"`
	Income      string `yaml:"income" mapstructure:"income"`
	Education   string `yaml:"education" mapstructure:"education"`
	Stores      string `yaml:"stores" mapstructure:"stores"`
}

// GeocodeConfig configures address lookup for analysis centers.
type GeocodeConfig struct {
	URL       string  `yaml:"url" mapstructure:"url"`
	Benchmark string  `yaml:"benchmark" mapstructure:"benchmark"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RetryConfig configures retries of remote layer queries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// CircuitConfig configures the per-layer circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AnalysisConfig holds operator defaults.
type AnalysisConfig struct {
	DefaultTarget int `yaml:"default_target" mapstructure:"default_target"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("catchment")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATCHMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.driver", DriverArcGIS)
	v.SetDefault("arcgis.block_groups_url", "https://services.arcgis.com/P3ePLMYs2RVChkJx/arcgis/rest/services/USA_Census_2020_DHC_Total_Population/FeatureServer/4")
	v.SetDefault("arcgis.income_url", "https://services.arcgis.com/P3ePLMYs2RVChkJx/arcgis/rest/services/Esri_Updated_Demographics_Variables/FeatureServer/4")
	v.SetDefault("arcgis.education_url", "https://services.arcgis.com/P3ePLMYs2RVChkJx/arcgis/rest/services/Esri_Updated_Demographics_Variables/FeatureServer/4")
	v.SetDefault("arcgis.stores_url", "https://services.arcgis.com/CkYmj4Spu6bZ7mge/arcgis/rest/services/Trader_Joes_Locations/FeatureServer/0")
	v.SetDefault("arcgis.token", "")
	v.SetDefault("arcgis.timeout_secs", 30)
	v.SetDefault("arcgis.rate_limit", 10.0)
	v.SetDefault("arcgis.page_size", 2000)
	v.SetDefault("arcgis.object_id_field", "OBJECTID")
	v.SetDefault("postgis.database_url", "")
	v.SetDefault("postgis.max_conns", 10)
	v.SetDefault("postgis.block_groups_table", "geo.block_groups")
	v.SetDefault("postgis.income_table", "geo.acs_income")
	v.SetDefault("postgis.education_table", "geo.acs_education")
	v.SetDefault("postgis.stores_table", "geo.stores")
	v.SetDefault("shapefile.block_groups", "")
	v.SetDefault("shapefile.income", "")
	v.SetDefault("shapefile.education", "")
	v.SetDefault("shapefile.stores", "")
	v.SetDefault("geocode.url", "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress")
	v.SetDefault("geocode.benchmark", "Public_AR_Current")
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("analysis.default_target", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "analyze",
// "serve" or "import".
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "analyze", "serve":
		switch c.Source.Driver {
		case DriverArcGIS:
			if c.ArcGIS.BlockGroupsURL == "" {
				missing = append(missing, "arcgis.block_groups_url")
			}
			if c.ArcGIS.IncomeURL == "" {
				missing = append(missing, "arcgis.income_url")
			}
			if c.ArcGIS.EducationURL == "" {
				missing = append(missing, "arcgis.education_url")
			}
		case DriverPostGIS:
			if c.PostGIS.DatabaseURL == "" {
				missing = append(missing, "postgis.database_url")
			}
		case DriverShapefile:
			if c.Shapefile.BlockGroups == "" {
				missing = append(missing, "shapefile.block_groups")
			}
			if c.Shapefile.Income == "" {
				missing = append(missing, "shapefile.income")
			}
			if c.Shapefile.Education == "" {
				missing = append(missing, "shapefile.education")
			}
		default:
			return eris.Errorf("config: unknown source driver %q", c.Source.Driver)
		}
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			return eris.Errorf("config: invalid server.port %d", c.Server.Port)
		}
	case "import":
		if c.PostGIS.DatabaseURL == "" {
			missing = append(missing, "postgis.database_url")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
