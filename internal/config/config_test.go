package config

import (
	"os"
	"path/filepath"
	"testing"

	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("LEIH_DB_PATH", "custom.db")
	yamlContent := `
app:
  name: leihlokal-test
store:
  path: "${LEIH_DB_PATH}"
schedule:
  overlap_policy: half_open
  closed_days: [so, mo]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "leihlokal-test", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "custom.db", cfg.Store.Path)
	assert.Equal(t, schedule.OverlapHalfOpen, cfg.Schedule.Policy())
	assert.Equal(t, schedule.NewClosedDays(0, 1), cfg.Schedule.Closed())

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, float64(models.RateLimitRPS), cfg.API.RateLimit.RPS)
	assert.Equal(t, models.DefaultEmployeeTTL, cfg.Context.EmployeeTTL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("app:\n  environment: test\n"), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, schedule.OverlapClosed, cfg.Schedule.Policy())
	assert.Equal(t, schedule.DefaultClosedDays(), cfg.Schedule.Closed())
	assert.Equal(t, "data/leihlokal.db", cfg.Store.Path)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{Store: StoreConfig{Driver: "sqlite", Path: "x.db"}}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "bad overlap policy", mutate: func(c *Config) { c.Schedule.OverlapPolicy = "sometimes" }, wantErr: true},
		{name: "bad closed day", mutate: func(c *Config) { c.Schedule.ClosedDays = []string{"caturday"} }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: true},
		{name: "postgres without host", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: true},
		{name: "remote without url", mutate: func(c *Config) { c.Store.Driver = "remote" }, wantErr: true},
		{name: "amqp without url", mutate: func(c *Config) { c.AMQP.Enabled = true }, wantErr: true},
		{
			name: "empty api key",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.APIKeys = []APIClientKey{{Name: "front"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateItems(t *testing.T) {
	assert.NoError(t, ValidateItems([]models.Item{{ID: "a"}, {ID: "b", Copies: 3}}))
	assert.Error(t, ValidateItems([]models.Item{{ID: "a"}, {ID: "a"}}))
	assert.Error(t, ValidateItems([]models.Item{{Name: "no id"}}))
	assert.Error(t, ValidateItems([]models.Item{{ID: "a", Copies: -1}}))
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "leih", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=leih sslmode=disable", p.DSN())
}
