package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

//go:embed config.example.toml
var exampleConf []byte

// envPrefix is prepended to every environment override recognised by [ApplyEnv].
const envPrefix = "TRACKPOOL_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Providers   ProvidersConfig   `toml:"providers"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify app credentials used for the client credentials grant.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Market       string `toml:"market"`
}

// YouTubeConfig contains YouTube Data API settings.
type YouTubeConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RegionCode        string  `toml:"region_code"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ResolverConfig tunes the batch resolver.
type ResolverConfig struct {
	Workers        int    `toml:"workers"`
	SearchLimit    int    `toml:"search_limit"`
	MaxBudget      int    `toml:"max_budget"`
	CacheTTL       string `toml:"cache_ttl"`
	SearchProvider string `toml:"search_provider"`
}

// ProvidersConfig holds the HTTP behaviour shared by catalog provider clients.
type ProvidersConfig struct {
	Timeout string `toml:"timeout"`
	Retries int    `toml:"retries"`
}

// MaintenanceConfig schedules background cache upkeep for long-running processes.
type MaintenanceConfig struct {
	SweepSchedule   string `toml:"sweep_schedule"`
	PruneUnresolved string `toml:"prune_unresolved_after"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process environment.
//
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overlays TRACKPOOL_* environment variables onto the config.
//
// Credentials are expected to come from here rather than from the TOML file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	str("YOUTUBE_API_KEY", &c.Credentials.YouTube.APIKey)
	str("DATABASE_PATH", &c.Database.Path)
	str("SERVER_HOST", &c.Server.Host)
	num("SERVER_PORT", &c.Server.Port)
	num("RESOLVER_WORKERS", &c.Resolver.Workers)
	str("LOG_LEVEL", &c.Log.Level)
}

// Validate reports impossible values as [ErrInvalidConfig].
func (c *Config) Validate() error {
	if c.Resolver.Workers < 1 {
		return fmt.Errorf("%w: resolver.workers must be at least 1", ErrInvalidConfig)
	}
	if c.Resolver.SearchLimit < 1 || c.Resolver.SearchLimit > 50 {
		return fmt.Errorf("%w: resolver.search_limit must be within [1, 50]", ErrInvalidConfig)
	}
	if c.Resolver.MaxBudget < 0 {
		return fmt.Errorf("%w: resolver.max_budget must not be negative", ErrInvalidConfig)
	}
	if _, err := time.ParseDuration(c.Resolver.CacheTTL); err != nil {
		return fmt.Errorf("%w: resolver.cache_ttl: %v", ErrInvalidConfig, err)
	}
	if _, err := time.ParseDuration(c.Providers.Timeout); err != nil {
		return fmt.Errorf("%w: providers.timeout: %v", ErrInvalidConfig, err)
	}
	if spec := strings.TrimSpace(c.Maintenance.SweepSchedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w: maintenance.sweep_schedule: %v", ErrInvalidConfig, err)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// CacheTTL returns the volatile cache TTL, defaulting to 24h when unparsable.
func (c *Config) CacheTTL() time.Duration {
	return durationOr(c.Resolver.CacheTTL, 24*time.Hour)
}

// ProviderTimeout returns the per-request provider timeout, defaulting to 8s.
func (c *Config) ProviderTimeout() time.Duration {
	return durationOr(c.Providers.Timeout, 8*time.Second)
}

// PruneUnresolvedAfter returns the age after which unresolved attempt rows are pruned.
//
// Zero disables pruning.
func (c *Config) PruneUnresolvedAfter() time.Duration {
	return durationOr(c.Maintenance.PruneUnresolved, 0)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
