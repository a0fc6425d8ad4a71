package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Detection DetectionConfig `mapstructure:"detection"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// OverpassConfig points at the geodata service that supplies building
// features.
type OverpassConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RetryAttempts  int    `mapstructure:"retry_attempts"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
}

// GeocodingConfig points at the reverse-geocoding service. An empty APIKey
// is a supported degraded mode (placeholder addresses), not a config error.
type GeocodingConfig struct {
	URL             string `mapstructure:"url"`
	APIKey          string `mapstructure:"api_key"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	RetryDelayMs    int    `mapstructure:"retry_delay_ms"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// DetectionConfig carries the building-density heuristics. The divisor and
// clamp bounds are part of observable behavior; change them only on purpose.
type DetectionConfig struct {
	AreaPerBuildingM2 float64 `mapstructure:"area_per_building_m2"`
	MinTarget         int     `mapstructure:"min_target"`
	MaxTarget         int     `mapstructure:"max_target"`
	SampleAttempts    int     `mapstructure:"sample_attempts"`
}

type TemporalConfig struct {
	HostPort     string `mapstructure:"host_port"`
	Namespace    string `mapstructure:"namespace"`
	TaskQueue    string `mapstructure:"task_queue"`
	CronSchedule string `mapstructure:"cron_schedule"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "doorstep")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "doorstep")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_seconds", 25)
	v.SetDefault("overpass.retry_attempts", 3)
	v.SetDefault("overpass.retry_delay_ms", 800)
	v.SetDefault("geocoding.url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("geocoding.timeout_seconds", 10)
	v.SetDefault("geocoding.retry_attempts", 2)
	v.SetDefault("geocoding.retry_delay_ms", 400)
	v.SetDefault("geocoding.cache_ttl_seconds", 86400)
	v.SetDefault("detection.area_per_building_m2", 400.0)
	v.SetDefault("detection.min_target", 3)
	v.SetDefault("detection.max_target", 50)
	v.SetDefault("detection.sample_attempts", 30)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "doorstep-rescan")
	v.SetDefault("temporal.cron_schedule", "0 4 * * *")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: DOORSTEP_DATABASE_HOST → database.host
	v.SetEnvPrefix("DOORSTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Overpass.URL == "" {
		errs = append(errs, "overpass.url is required")
	}
	if c.Overpass.RetryAttempts < 1 {
		errs = append(errs, "overpass.retry_attempts must be at least 1")
	}
	if c.Geocoding.URL == "" {
		errs = append(errs, "geocoding.url is required")
	}
	if c.Geocoding.RetryAttempts < 1 {
		errs = append(errs, "geocoding.retry_attempts must be at least 1")
	}
	if c.Detection.AreaPerBuildingM2 <= 0 {
		errs = append(errs, "detection.area_per_building_m2 must be positive")
	}
	if c.Detection.MinTarget < 1 {
		errs = append(errs, "detection.min_target must be at least 1")
	}
	if c.Detection.MaxTarget < c.Detection.MinTarget {
		errs = append(errs, fmt.Sprintf("detection.max_target must be >= min_target, got %d < %d",
			c.Detection.MaxTarget, c.Detection.MinTarget))
	}
	if c.Detection.SampleAttempts < 1 {
		errs = append(errs, "detection.sample_attempts must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
