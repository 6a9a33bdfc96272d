package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Context    ContextConfig    `yaml:"context"`
	// ItemsFile is an optional YAML seed for the items collection.
	ItemsFile string `yaml:"items_file"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ScheduleConfig struct {
	OverlapPolicy string   `yaml:"overlap_policy"`
	ClosedDays    []string `yaml:"closed_days"`
}

// Policy returns the parsed overlap policy. Validate guarantees it parses.
func (s ScheduleConfig) Policy() schedule.OverlapPolicy {
	p, _ := schedule.ParseOverlapPolicy(s.OverlapPolicy)
	return p
}

// Closed returns the weekly closed-day pattern.
func (s ScheduleConfig) Closed() schedule.ClosedDays {
	c, err := schedule.ParseClosedDays(s.ClosedDays)
	if err != nil {
		return schedule.DefaultClosedDays()
	}
	return c
}

// StoreConfig selects the record store backend: sqlite, postgres or remote.
type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
	Remote   RemoteConfig   `yaml:"remote"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a libpq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSeconds   int    `yaml:"cache_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TelegramConfig configures overflow alerts. Empty token disables them.
type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
	// ReminderTime is the daily "HH:MM" of the return digest; empty disables it.
	ReminderTime string `yaml:"reminder_time"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

// Enabled reports whether Sheets sync is configured.
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.SpreadsheetID != ""
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// ContextConfig sets expiry of cached application context entries, in seconds.
type ContextConfig struct {
	EmployeeTTL int `yaml:"employee_ttl"`
	SettingsTTL int `yaml:"settings_ttl"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := schedule.ParseOverlapPolicy(c.Schedule.OverlapPolicy); err != nil {
		return err
	}
	if _, err := schedule.ParseClosedDays(c.Schedule.ClosedDays); err != nil {
		return err
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return errors.New("store.postgres host and dbname are required")
		}
	case "remote":
		if c.Store.Remote.BaseURL == "" {
			return errors.New("store.remote.base_url is required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return errors.New("amqp.url is required when amqp is enabled")
	}

	if c.API.Auth.Enabled {
		for i, k := range c.API.Auth.APIKeys {
			if strings.TrimSpace(k.Key) == "" {
				return fmt.Errorf("api.auth.api_keys[%d] has empty key", i)
			}
		}
	}

	return nil
}

// ValidateItems checks a seed list for missing or duplicate IDs.
func ValidateItems(items []models.Item) error {
	itemIDs := make(map[string]bool)
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("item '%s' has empty ID", item.Name)
		}
		if itemIDs[item.ID] {
			return fmt.Errorf("duplicate item ID found: %s", item.ID)
		}
		if item.Copies < 0 {
			return fmt.Errorf("item %s has negative copies", item.ID)
		}
		itemIDs[item.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "leihlokal"
	}
	if len(c.Schedule.ClosedDays) == 0 {
		c.Schedule.ClosedDays = []string{"sunday", "tuesday", "wednesday"}
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "data/leihlokal.db"
	}
	if c.Store.Postgres.Port == 0 {
		c.Store.Postgres.Port = 5432
	}
	if c.Store.Postgres.SSLMode == "" {
		c.Store.Postgres.SSLMode = "disable"
	}
	if c.Store.Remote.TimeoutSeconds == 0 {
		c.Store.Remote.TimeoutSeconds = 10
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "leihlokal.records"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = int(c.API.RateLimit.RPS) * 2
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Belegung"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Context.EmployeeTTL == 0 {
		c.Context.EmployeeTTL = models.DefaultEmployeeTTL
	}
	if c.Context.SettingsTTL == 0 {
		c.Context.SettingsTTL = models.DefaultSettingsTTL
	}
}
