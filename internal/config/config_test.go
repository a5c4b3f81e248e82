package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverArcGIS, cfg.Source.Driver)
	assert.Contains(t, cfg.ArcGIS.BlockGroupsURL, "USA_Census_2020_DHC_Total_Population/FeatureServer/4")
	assert.Contains(t, cfg.ArcGIS.StoresURL, "Trader_Joes_Locations/FeatureServer/0")
	assert.NotEmpty(t, cfg.ArcGIS.IncomeURL)
	assert.NotEmpty(t, cfg.ArcGIS.EducationURL)
	assert.Equal(t, 30, cfg.ArcGIS.TimeoutSecs)
	assert.InDelta(t, 10.0, cfg.ArcGIS.RateLimit, 0.001)
	assert.Equal(t, 2000, cfg.ArcGIS.PageSize)
	assert.Equal(t, "OBJECTID", cfg.ArcGIS.ObjectIDField)
	assert.Equal(t, int32(10), cfg.PostGIS.MaxConns)
	assert.Equal(t, "geo.block_groups", cfg.PostGIS.BlockGroupsTable)
	assert.Equal(t, "geo.acs_income", cfg.PostGIS.IncomeTable)
	assert.Equal(t, "geo.acs_education", cfg.PostGIS.EducationTable)
	assert.Equal(t, "geo.stores", cfg.PostGIS.StoresTable)
	assert.Contains(t, cfg.Geocode.URL, "geocoding.geo.census.gov")
	assert.Equal(t, "Public_AR_Current", cfg.Geocode.Benchmark)
	assert.InDelta(t, 10.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 10000, cfg.Retry.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.InDelta(t, 0.25, cfg.Retry.Jitter, 0.001)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.Equal(t, 10000, cfg.Analysis.DefaultTarget)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  driver: shapefile
shapefile:
  block_groups: data/bg.shp
  income: data/income.shp
  education: data/edu.shp
log:
  level: debug
  format: console
analysis:
  default_target: 25000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catchment.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverShapefile, cfg.Source.Driver)
	assert.Equal(t, "data/bg.shp", cfg.Shapefile.BlockGroups)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 25000, cfg.Analysis.DefaultTarget)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  driver: shapefile
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catchment.yaml"), []byte(yaml), 0o644))

	t.Setenv("CATCHMENT_SOURCE_DRIVER", "postgis")
	t.Setenv("CATCHMENT_LOG_LEVEL", "warn")
	t.Setenv("CATCHMENT_POSTGIS_DATABASE_URL", "postgres://localhost/census")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostGIS, cfg.Source.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://localhost/census", cfg.PostGIS.DatabaseURL)
}

func TestLoadBadFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catchment.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	return &Config{
		Source: SourceConfig{Driver: DriverArcGIS},
		ArcGIS: ArcGISConfig{
			BlockGroupsURL: "https://example.com/bg",
			IncomeURL:      "https://example.com/income",
			EducationURL:   "https://example.com/edu",
		},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidate_ArcGIS(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("analyze"))
	assert.NoError(t, cfg.Validate("serve"))

	cfg.ArcGIS.IncomeURL = ""
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arcgis.income_url")
}

func TestValidate_PostGISNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Driver = DriverPostGIS
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgis.database_url")

	cfg.PostGIS.DatabaseURL = "postgres://localhost/census"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_ShapefileListsAllMissing(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Driver = DriverShapefile
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shapefile.block_groups")
	assert.Contains(t, err.Error(), "shapefile.education")
}

func TestValidate_ServeInvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_Import(t *testing.T) {
	cfg := validDefaults()
	assert.Error(t, cfg.Validate("import"))
	cfg.PostGIS.DatabaseURL = "postgres://localhost/census"
	assert.NoError(t, cfg.Validate("import"))
}

func TestValidate_Unknown(t *testing.T) {
	cfg := validDefaults()
	assert.Error(t, cfg.Validate("bogus"))

	cfg.Source.Driver = "wfs"
	assert.Error(t, cfg.Validate("analyze"))
}
