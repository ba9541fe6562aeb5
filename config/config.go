package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system:
// the HTTP server, the PostgreSQL store, the upstream data sources, local output and
// optional S3 publishing.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
//	POSTGRES_DB=twpulse
//	TWSE_BASE_URL=https://www.twse.com.tw
//	PRICE_BASE_URL=https://query2.finance.yahoo.com
//	FETCH_RETRY=3
//	FETCH_RETRY_WAIT=1s
//	OUTPUT_DIR=./data
//	S3_BUCKET=my-bucket
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Postgres PostgresConfig // PostgreSQL connection settings
	Fetch    FetchConfig    // Upstream data sources
	Output   OutputConfig   // Local artifacts
	S3       S3Config       // Optional artifact publishing
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the HTTP server will listen on (e.g., "8080")
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// FetchConfig controls how the price provider and TWSE are queried.
//
// Fields:
//   - TWSEBaseURL / PriceBaseURL: endpoints, overridable for mirrors and tests.
//   - Timeout: per-request HTTP timeout.
//   - Retry: extra attempts per TWSE date.
//   - RetryWait: constant wait between attempts.
//   - TWSERatePerSec: request pacing towards TWSE.
//   - PriceWorkers: concurrent symbol downloads.
type FetchConfig struct {
	TWSEBaseURL    string
	PriceBaseURL   string
	Timeout        time.Duration
	Retry          int
	RetryWait      time.Duration
	TWSERatePerSec float64
	PriceWorkers   int
}

// OutputConfig holds where artifacts are written.
type OutputConfig struct {
	Dir string
}

// S3Config configures artifact publishing. Publishing is disabled when Bucket is empty.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
// All services should import this package and read from AppConfig instead of
// reloading environment variables directly.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//  4. CLI flags bound into viper by the caller (see cmd).
//
// Fatal exit:
//   - If required variables are missing, validateConfig() will terminate the app
//     with a descriptive log message.
func LoadConfig() {
	setDefaults()

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	viper.AutomaticEnv()

	Refresh()
	validateConfig()
}

// Refresh rebuilds AppConfig from viper's current state. Call it after binding flags.
func Refresh() {
	AppConfig = Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Fetch: FetchConfig{
			TWSEBaseURL:    viper.GetString("TWSE_BASE_URL"),
			PriceBaseURL:   viper.GetString("PRICE_BASE_URL"),
			Timeout:        viper.GetDuration("HTTP_TIMEOUT"),
			Retry:          viper.GetInt("FETCH_RETRY"),
			RetryWait:      viper.GetDuration("FETCH_RETRY_WAIT"),
			TWSERatePerSec: viper.GetFloat64("TWSE_RATE_PER_SEC"),
			PriceWorkers:   viper.GetInt("PRICE_WORKERS"),
		},
		Output: OutputConfig{
			Dir: viper.GetString("OUTPUT_DIR"),
		},
		S3: S3Config{
			Bucket:    viper.GetString("S3_BUCKET"),
			Prefix:    viper.GetString("S3_PREFIX"),
			Region:    viper.GetString("AWS_REGION"),
			Endpoint:  viper.GetString("S3_ENDPOINT"),
			PathStyle: viper.GetBool("S3_PATH_STYLE"),
		},
	}

	// Construct Postgres DSN (used by database/sql)
	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "twpulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("TWSE_BASE_URL", "https://www.twse.com.tw")
	viper.SetDefault("PRICE_BASE_URL", "https://query2.finance.yahoo.com")
	viper.SetDefault("HTTP_TIMEOUT", "10s")
	viper.SetDefault("FETCH_RETRY", 3)
	viper.SetDefault("FETCH_RETRY_WAIT", "1s")
	viper.SetDefault("TWSE_RATE_PER_SEC", 2.0)
	viper.SetDefault("PRICE_WORKERS", 4)

	viper.SetDefault("OUTPUT_DIR", "./data")
	viper.SetDefault("S3_PREFIX", "twpulse")
}

// validateConfig ensures required variables are present and terminates
// the application if they are missing.
//
// This avoids unexpected runtime failures due to incomplete configuration.
func validateConfig() {
	if missing := Missing(AppConfig); len(missing) > 0 {
		log.Fatalf("missing required environment variables: %v\n", missing)
	}
}

// Missing lists the required keys that are empty in c.
func Missing(c Config) []string {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if c.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if c.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if c.Fetch.TWSEBaseURL == "" {
		missing = append(missing, "TWSE_BASE_URL")
	}
	if c.Fetch.PriceBaseURL == "" {
		missing = append(missing, "PRICE_BASE_URL")
	}
	if c.Output.Dir == "" {
		missing = append(missing, "OUTPUT_DIR")
	}
	return missing
}
