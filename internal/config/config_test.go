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
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "enrich.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "serper", cfg.Search.Provider)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, "https://company.bigpicture.io/v1", cfg.BigPicture.BaseURL)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 50, cfg.Anthropic.WindowSize)
	assert.Equal(t, 60, cfg.Anthropic.WindowSecs)
	assert.Equal(t, "%s AI company official website", cfg.Homepage.QueryTemplate)
	assert.Equal(t, 10, cfg.Homepage.NumResults)
	assert.Equal(t, 1000, cfg.Homepage.PacingMs)
	assert.Equal(t, 3, cfg.Profile.MaxRetries)
	assert.Equal(t, 5, cfg.Profile.RetryDelaySecs)
	assert.Equal(t, 100, cfg.Profile.PacingMs)
	assert.Equal(t, 3, cfg.Features.FetchAttempts)
	assert.Equal(t, 10, cfg.Features.FetchTimeoutSecs)
	assert.Equal(t, 400, cfg.Features.PacingMs)
	assert.Equal(t, "company_list.csv", cfg.Files.Companies)
	assert.Equal(t, "company_list_with_homepages.csv", cfg.Files.Homepages)
	assert.Equal(t, "company_info_results.csv", cfg.Files.Profiles)
	assert.Equal(t, "company_features_results.csv", cfg.Files.Features)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: none
log:
  level: debug
  format: json
files:
  companies: input.csv
homepage:
  exclude_hosts: [www.g2.com]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "input.csv", cfg.Files.Companies)
	assert.Equal(t, []string{"www.g2.com"}, cfg.Homepage.ExcludeHosts)
	// Defaults still apply for unset values
	assert.Equal(t, "company_list_with_homepages.csv", cfg.Files.Homepages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ENRICH_STORE_DRIVER", "postgres")
	t.Setenv("ENRICH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ENRICH_SERPER_KEY", "serper-secret")
	t.Setenv("ENRICH_ANTHROPIC_KEY", "sk-ant-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "serper-secret", cfg.Serper.Key)
	assert.Equal(t, "sk-ant-key", cfg.Anthropic.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	// Registered so t.Setenv restores the variable after godotenv sets it.
	t.Setenv("ENRICH_BIGPICTURE_KEY", "")
	require.NoError(t, os.Unsetenv("ENRICH_BIGPICTURE_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENRICH_BIGPICTURE_KEY=bp-from-dotenv\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bp-from-dotenv", cfg.BigPicture.Key)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "enrich.db"
	cfg.Search.Provider = "serper"
	cfg.Homepage.QueryTemplate = "%s AI company official website"
	cfg.Homepage.NumResults = 10
	cfg.Profile.MaxRetries = 3
	cfg.Features.FetchAttempts = 3
	cfg.Anthropic.WindowSize = 50
	cfg.Anthropic.WindowSecs = 60
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_Errors(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Search.Provider = "bing"
	cfg.Homepage.QueryTemplate = "official website"
	cfg.Homepage.NumResults = 0
	cfg.Features.FetchAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite, postgres or none")
	assert.Contains(t, err.Error(), "search.provider must be serper or jina")
	assert.Contains(t, err.Error(), "homepage.query_template must contain %s")
	assert.Contains(t, err.Error(), "homepage.num_results")
	assert.Contains(t, err.Error(), "features.fetch_attempts")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate())
}

func TestMissingCredentials(t *testing.T) {
	cfg := validDefaults()

	assert.Equal(t, []string{"ENRICH_SERPER_KEY"}, cfg.MissingCredentials(StageHomepages))
	assert.Equal(t, []string{"ENRICH_BIGPICTURE_KEY"}, cfg.MissingCredentials(StageProfiles))
	assert.Equal(t, []string{"ENRICH_ANTHROPIC_KEY"}, cfg.MissingCredentials(StageFeatures))

	cfg.Search.Provider = "jina"
	assert.Equal(t, []string{"ENRICH_JINA_KEY"}, cfg.MissingCredentials(StageHomepages))

	cfg.Jina.Key = "jina"
	cfg.BigPicture.Key = "bp"
	cfg.Anthropic.Key = "sk"
	assert.Empty(t, cfg.MissingCredentials(StageHomepages))
	assert.Empty(t, cfg.MissingCredentials(StageProfiles))
	assert.Empty(t, cfg.MissingCredentials(StageFeatures))
}
