package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string `yaml:"dsn"` // full connection string, takes precedence over the fields below
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	SSLMode            string `yaml:"sslmode"`
	Schema             string `yaml:"schema"`
	MaxConnections     int    `yaml:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int    `yaml:"port"`
	Host              string `yaml:"host"`
	GinMode           string `yaml:"gin_mode"`
	AllowedOrigins    string `yaml:"allowed_origins"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RateLimitBurst    int    `yaml:"rate_limit_burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// OpenAIConfig holds completion service configuration
type OpenAIConfig struct {
	APIKey            string  `yaml:"api_key"`
	APIBase           string  `yaml:"api_base"`
	Model             string  `yaml:"model"`
	APIStyle          string  `yaml:"api_style"` // completions or chat
	Temperature       float64 `yaml:"temperature"`
	Timeout           int     `yaml:"timeout"`            // HTTP client timeout, seconds
	CorrectionTimeout int     `yaml:"correction_timeout"` // per-correction deadline, seconds
	Enabled           bool    `yaml:"-"`
}

// CatalogConfig holds the movie catalog (TMDB) API configuration
type CatalogConfig struct {
	APIKey            string  `yaml:"api_key"`
	APIBase           string  `yaml:"api_base"`
	Language          string  `yaml:"language"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts"`
	Timeout           int     `yaml:"timeout"`
}

// IngestionConfig holds batch ingestion configuration
type IngestionConfig struct {
	StartPage    int         `yaml:"start_page"`
	TotalPages   int         `yaml:"total_pages"` // 0 means ask the catalog
	BatchSize    int         `yaml:"batch_size"`
	PauseSeconds int         `yaml:"pause_seconds"`
	SkipExisting bool        `yaml:"skip_existing"`
	DateRanges   []DateRange `yaml:"date_ranges"`
}

// DateRange bounds a release-date filter, both ends inclusive, formatted YYYY-MM-DD
type DateRange struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		PostgreSQL: PostgreSQLConfig{
			Host:               "localhost",
			Port:               5432,
			User:               "postgres",
			Database:           "movies_db",
			SSLMode:            "disable",
			Schema:             "movies",
			MaxConnections:     10,
			MaxIdleConnections: 2,
		},
		Server: ServerConfig{
			Port:              8080,
			Host:              "0.0.0.0",
			GinMode:           "release",
			AllowedOrigins:    "*",
			RequestsPerMinute: 60,
			RateLimitBurst:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		OpenAI: OpenAIConfig{
			APIBase:           "https://api.openai.com/v1",
			Model:             "gpt-3.5-turbo-instruct",
			APIStyle:          "completions",
			Temperature:       0,
			Timeout:           30,
			CorrectionTimeout: 10,
		},
		Catalog: CatalogConfig{
			APIBase:           "https://api.themoviedb.org/3",
			Language:          "en-US",
			RequestsPerSecond: 20,
			MaxAttempts:       5,
			Timeout:           30,
		},
		Ingestion: IngestionConfig{
			StartPage:    1,
			TotalPages:   0,
			BatchSize:    100,
			PauseSeconds: 60,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file, an optional
// .env file and finally environment variables, later sources winning.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Try to load .env file (optional)
	_ = godotenv.Load()

	pg := &cfg.PostgreSQL
	pg.DSN = getEnv("DATABASE_URL", getEnv("PG_DSN", pg.DSN))
	pg.Host = getEnv("PG_HOST", pg.Host)
	pg.Port = getEnvAsInt("PG_PORT", pg.Port)
	pg.User = getEnv("PG_USER", pg.User)
	pg.Password = getEnv("PG_PASSWORD", getEnv("DB_PASSWORD", pg.Password))
	pg.Database = getEnv("PG_DATABASE", pg.Database)
	pg.SSLMode = getEnv("PG_SSLMODE", pg.SSLMode)
	pg.Schema = getEnv("PG_SCHEMA", pg.Schema)
	pg.MaxConnections = getEnvAsInt("PG_MAX_CONNECTIONS", pg.MaxConnections)
	pg.MaxIdleConnections = getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", pg.MaxIdleConnections)

	srv := &cfg.Server
	srv.Port = getEnvAsInt("SERVER_PORT", srv.Port)
	srv.Host = getEnv("SERVER_HOST", srv.Host)
	srv.GinMode = getEnv("GIN_MODE", srv.GinMode)
	srv.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", srv.AllowedOrigins)
	srv.RequestsPerMinute = getEnvAsInt("SERVER_REQUESTS_PER_MINUTE", srv.RequestsPerMinute)
	srv.RateLimitBurst = getEnvAsInt("SERVER_RATE_LIMIT_BURST", srv.RateLimitBurst)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	ai := &cfg.OpenAI
	ai.APIKey = getEnv("OPENAI_API_KEY", ai.APIKey)
	ai.APIBase = strings.TrimRight(getEnv("OPENAI_API_BASE", ai.APIBase), "/")
	ai.Model = getEnv("OPENAI_MODEL", ai.Model)
	ai.APIStyle = getEnv("OPENAI_API_STYLE", ai.APIStyle)
	ai.Temperature = getEnvAsFloat("OPENAI_TEMPERATURE", ai.Temperature)
	ai.Timeout = getEnvAsInt("OPENAI_TIMEOUT", ai.Timeout)
	ai.CorrectionTimeout = getEnvAsInt("OPENAI_CORRECTION_TIMEOUT", ai.CorrectionTimeout)
	ai.Enabled = ai.APIKey != ""

	cat := &cfg.Catalog
	cat.APIKey = getEnv("TMDB_API_KEY", cat.APIKey)
	cat.APIBase = strings.TrimRight(getEnv("TMDB_API_BASE", cat.APIBase), "/")
	cat.Language = getEnv("TMDB_LANGUAGE", cat.Language)
	cat.RequestsPerSecond = getEnvAsFloat("TMDB_REQUESTS_PER_SECOND", cat.RequestsPerSecond)
	cat.MaxAttempts = getEnvAsInt("TMDB_MAX_ATTEMPTS", cat.MaxAttempts)
	cat.Timeout = getEnvAsInt("TMDB_TIMEOUT", cat.Timeout)

	ing := &cfg.Ingestion
	ing.StartPage = getEnvAsInt("INGEST_START_PAGE", ing.StartPage)
	ing.TotalPages = getEnvAsInt("INGEST_TOTAL_PAGES", ing.TotalPages)
	ing.BatchSize = getEnvAsInt("INGEST_BATCH_SIZE", ing.BatchSize)
	ing.PauseSeconds = getEnvAsInt("INGEST_PAUSE_SECONDS", ing.PauseSeconds)
	ing.SkipExisting = getEnvAsBool("INGEST_SKIP_EXISTING", ing.SkipExisting)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	switch c.OpenAI.APIStyle {
	case "completions", "chat":
	default:
		return fmt.Errorf("invalid openai api_style %q, must be completions or chat", c.OpenAI.APIStyle)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.StartPage <= 0 {
		return fmt.Errorf("ingestion start_page must be positive, got %d", c.Ingestion.StartPage)
	}
	if c.Catalog.MaxAttempts <= 0 {
		return fmt.Errorf("catalog max_attempts must be positive, got %d", c.Catalog.MaxAttempts)
	}
	for _, r := range c.Ingestion.DateRanges {
		if _, err := time.Parse("2006-01-02", r.From); err != nil {
			return fmt.Errorf("invalid date range start %q: %w", r.From, err)
		}
		if _, err := time.Parse("2006-01-02", r.To); err != nil {
			return fmt.Errorf("invalid date range end %q: %w", r.To, err)
		}
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// CorrectionDeadline returns the per-correction timeout as a duration
func (c *OpenAIConfig) CorrectionDeadline() time.Duration {
	return time.Duration(c.CorrectionTimeout) * time.Second
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid integer value for %s, using default %d\n", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid float value for %s, using default %f\n", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid boolean value for %s, using default %t\n", key, defaultValue)
		return defaultValue
	}
	return value
}
