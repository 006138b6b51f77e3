// Package config loads geoserve settings from defaults, an optional YAML
// file and GEOSERVE_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Regions   RegionsConfig   `mapstructure:"regions"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cache     CacheConfig     `mapstructure:"cache"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EndpointsConfig holds the upstream service URLs.
type EndpointsConfig struct {
	Geocode string `mapstructure:"geocode"`
	Places  string `mapstructure:"places"`
	Regions string `mapstructure:"regions"`
	Layers  string `mapstructure:"layers"`
}

// RegionsConfig lists the region query types resolved for every coordinate.
type RegionsConfig struct {
	Types []string `mapstructure:"types"`
}

type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	Size       int           `mapstructure:"size"`
	ValkeyAddr string        `mapstructure:"valkey_addr"`
	DataDir    string        `mapstructure:"data_dir"`
}

// NATSConfig enables the relay when URL is set.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. path names an explicit config file; when empty,
// geoserve.yaml is looked up in . and ./configs and may be missing.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8087)
	v.SetDefault("endpoints.geocode", "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/find")
	v.SetDefault("endpoints.places", "https://earthquake.usgs.gov/ws/geoserve/places.json")
	v.SetDefault("endpoints.regions", "https://earthquake.usgs.gov/ws/geoserve/regions.json")
	v.SetDefault("endpoints.layers", "https://earthquake.usgs.gov/ws/geoserve/layers.json")
	v.SetDefault("regions.types", []string{"admin", "tectonic"})
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.rate_per_second", 5)
	v.SetDefault("http.burst", 5)
	v.SetDefault("http.user_agent", "plat-geoserve/0.1")
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.valkey_addr", "localhost:6379")
	v.SetDefault("cache.data_dir", ".data")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "geoserve")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("geoserve")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: GEOSERVE_HTTP_TIMEOUT → http.timeout
	v.SetEnvPrefix("GEOSERVE")
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
	for name, raw := range map[string]string{
		"endpoints.geocode": c.Endpoints.Geocode,
		"endpoints.places":  c.Endpoints.Places,
		"endpoints.regions": c.Endpoints.Regions,
		"endpoints.layers":  c.Endpoints.Layers,
	} {
		u, err := url.Parse(raw)
		if raw == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, "http.timeout must be positive")
	}
	if c.HTTP.RatePerSecond < 0 {
		errs = append(errs, "http.rate_per_second must not be negative")
	}
	switch c.Cache.Backend {
	case "none", "memory", "duckdb":
	case "valkey":
		if c.Cache.ValkeyAddr == "" {
			errs = append(errs, "cache.valkey_addr is required for the valkey backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be none, memory, valkey or duckdb, got %q", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
