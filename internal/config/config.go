// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrInvalid is returned when an environment value cannot be parsed.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Port string
	Env  string

	// RequireTLS rejects plain-HTTP requests forwarded by a proxy.
	RequireTLS bool

	OpenWeather OpenWeatherConfig
	Geo         GeoConfig
	Auth        AuthConfig
	Store       StoreConfig
	Telemetry   TelemetryConfig
	Worker      WorkerConfig
	Influx      InfluxConfig
}

// OpenWeatherConfig configures the weather provider.
type OpenWeatherConfig struct {
	APIKey            string
	Lang              string
	Units             string
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
}

// GeoConfig configures IP geolocation and its fallback.
type GeoConfig struct {
	URL         string
	DefaultLat  float64
	DefaultLon  float64
	DefaultCity string
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	SigningKey     string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
}

// StoreConfig selects the user store.
type StoreConfig struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
}

// PostgresConfig describes the PostgreSQL connection. A non-empty URL wins
// over the individual fields.
type PostgresConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	Insecure       bool
	SampleRatio    float64
	MetricInterval time.Duration
}

// WorkerConfig configures the background refresh worker.
type WorkerConfig struct {
	PubSubProjectID    string
	PubSubSubscription string
	RefreshInterval    time.Duration
	Cities             []string
}

// InfluxConfig configures the daily summary export. An empty Addr disables it.
type InfluxConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port: getenvDefault("APP_PORT", "8080"),
		Env:  getenvDefault("APP_ENV", "development"),

		RequireTLS: p.bool("REQUIRE_TLS", false),

		OpenWeather: OpenWeatherConfig{
			APIKey:            os.Getenv("OPENWEATHER_API_KEY"),
			Lang:              getenvDefault("OPENWEATHER_LANG", "kr"),
			Units:             getenvDefault("OPENWEATHER_UNITS", "metric"),
			RequestsPerSecond: p.float("OPENWEATHER_RPS", 1),
			Burst:             p.int("OPENWEATHER_BURST", 5),
			CacheTTL:          p.duration("WEATHER_CACHE_TTL", 10*time.Minute),
		},
		Geo: GeoConfig{
			URL:         getenvDefault("GEOIP_URL", "http://ip-api.com/json"),
			DefaultLat:  p.float("DEFAULT_LAT", 37.5665),
			DefaultLon:  p.float("DEFAULT_LON", 126.9780),
			DefaultCity: getenvDefault("DEFAULT_CITY", "Seoul"),
		},
		Auth: AuthConfig{
			SigningKey:     os.Getenv("JWT_SIGNING_KEY"),
			Issuer:         getenvDefault("JWT_ISSUER", "weatherboard"),
			Audience:       getenvDefault("JWT_AUDIENCE", "weatherboard-api"),
			AccessTokenTTL: p.duration("ACCESS_TOKEN_TTL", 30*time.Minute),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getenvDefault("DB_DRIVER", DriverPostgres)),
			SQLitePath: getenvDefault("SQLITE_PATH", "weatherboard.db"),
			Postgres: PostgresConfig{
				URL:             os.Getenv("DATABASE_URL"),
				Host:            getenvDefault("DB_HOST", "localhost"),
				Port:            p.int("DB_PORT", 5432),
				User:            getenvDefault("DB_USER", "weatherboard"),
				Password:        getenvDefault("DB_PASSWORD", "localdev"),
				Database:        getenvDefault("DB_NAME", "weatherboard"),
				SSLMode:         getenvDefault("DB_SSL_MODE", "disable"),
				MaxConns:        p.int("DB_MAX_OPEN_CONNS", 10),
				MinConns:        p.int("DB_MAX_IDLE_CONNS", 2),
				ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
				ConnectTimeout:  p.duration("DB_CONNECT_TIMEOUT", 30*time.Second),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:        p.bool("OTEL_ENABLED", false),
			OTLPEndpoint:   getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:       p.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:    p.float("OTEL_TRACES_SAMPLE_RATIO", 1),
			MetricInterval: p.duration("OTEL_METRIC_EXPORT_INTERVAL", 15*time.Second),
		},
		Worker: WorkerConfig{
			PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: getenvDefault("PUBSUB_SUBSCRIPTION", "weatherboard-jobs"),
			RefreshInterval:    p.duration("REFRESH_INTERVAL", 30*time.Minute),
			Cities:             splitList(os.Getenv("REFRESH_CITIES")),
		},
		Influx: InfluxConfig{
			Addr:     os.Getenv("INFLUX_ADDR"),
			Database: getenvDefault("INFLUX_DB", "weatherboard"),
			Username: os.Getenv("INFLUX_USER"),
			Password: os.Getenv("INFLUX_PASSWORD"),
		},
	}

	switch cfg.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		p.fail("DB_DRIVER", fmt.Errorf("unknown driver %q", cfg.Store.Driver))
	}
	if pg := cfg.Store.Postgres; pg.MaxConns < 1 || pg.MinConns < 0 || pg.MinConns > pg.MaxConns {
		p.fail("DB_MAX_OPEN_CONNS", fmt.Errorf("need 0 <= idle (%d) <= open (%d) and open >= 1", pg.MinConns, pg.MaxConns))
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		p.fail("OTEL_TRACES_SAMPLE_RATIO", errors.New("must be between 0 and 1"))
	}
	if cfg.OpenWeather.RequestsPerSecond < 0 {
		p.fail("OPENWEATHER_RPS", errors.New("must not be negative"))
	}
	if cfg.Worker.RefreshInterval <= 0 {
		p.fail("REFRESH_INTERVAL", errors.New("must be positive"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser collects every parse failure so they are reported together.
type parser struct {
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err))
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
