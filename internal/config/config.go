// Package config provides configuration management for mediarr using Viper.
// Values are layered: defaults, then an optional config file, then
// environment variables (MEDIARR_ prefix, plus the legacy unprefixed names
// the deployment scripts already export).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Epg         EpgConfig         `mapstructure:"epg"`
	Tmdb        TmdbConfig        `mapstructure:"tmdb"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Playback    PlaybackConfig    `mapstructure:"playback"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the listen address in host:port form.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	URL             string        `mapstructure:"url"`
	LogLevel        string        `mapstructure:"log_level"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig controls the provider catalog sync loop.
type CatalogConfig struct {
	AutoSync               bool          `mapstructure:"auto_sync"`
	TickInterval           time.Duration `mapstructure:"tick_interval"`
	DefaultIntervalMinutes int           `mapstructure:"default_interval_minutes"`
	DeactivateMissingVod   bool          `mapstructure:"deactivate_missing_vod"`
}

// EpgConfig controls the guide ingest loop.
type EpgConfig struct {
	AutoSync           bool    `mapstructure:"auto_sync"`
	IntervalMinutes    int     `mapstructure:"interval_minutes"`
	WindowHours        int     `mapstructure:"window_hours"`
	EnrichDescriptions bool    `mapstructure:"enrich_descriptions"`
	EnrichMaxDescLen   int     `mapstructure:"enrich_max_desc_len"`
	AutoMatch          bool    `mapstructure:"auto_match"`
	AutoMatchMinScore  float64 `mapstructure:"auto_match_min_score"`
}

// TmdbConfig controls the metadata enrichment loop. Credentials live in the
// database, not here; these are pacing and batching knobs.
type TmdbConfig struct {
	AutoSync               bool    `mapstructure:"auto_sync"`
	IntervalMinutes        int     `mapstructure:"interval_minutes"`
	IdleMinutes            int     `mapstructure:"idle_minutes"`
	BatchMovies            int     `mapstructure:"batch_movies"`
	BatchSeries            int     `mapstructure:"batch_series"`
	Workers                int     `mapstructure:"workers"`
	RPS                    float64 `mapstructure:"rps"`
	Burst                  int     `mapstructure:"burst"`
	CooldownMissingMinutes   int     `mapstructure:"cooldown_missing_minutes"`
	CooldownTransientMinutes int     `mapstructure:"cooldown_transient_minutes"`
	CooldownFailedMinutes    int     `mapstructure:"cooldown_failed_minutes"`
	CooldownInvalidDays      int     `mapstructure:"cooldown_invalid_days"`
	ResyncDays               int     `mapstructure:"resync_days"`
}

// PlaybackConfig holds peripheral local-player settings. The launcher
// itself is an external collaborator; the binary path is only carried.
type PlaybackConfig struct {
	VlcBin string `mapstructure:"vlc_bin"`
}

// CollectionsConfig controls the collection cache refresh loop.
type CollectionsConfig struct {
	RefreshInterval      time.Duration `mapstructure:"refresh_interval"`
	StaleWhileRevalidate bool          `mapstructure:"stale_while_revalidate"`
}

// Default values.
const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080

	DefaultDatabaseDriver = "sqlite"
	DefaultDatabaseDSN    = "mediarr.db"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultCatalogTick            = time.Minute
	DefaultCatalogIntervalMinutes = 1440

	DefaultEpgIntervalMinutes = 30
	DefaultEpgWindowHours     = 48
	DefaultEpgMaxDescLen      = 600
	DefaultEpgMinScore        = 0.72

	DefaultTmdbIntervalMinutes       = 10
	DefaultTmdbIdleMinutes           = 15
	DefaultTmdbBatch                 = 25
	DefaultTmdbWorkers               = 2
	DefaultTmdbRPS                   = 5.0
	DefaultTmdbBurst                 = 10
	DefaultTmdbCooldownMissingMinutes   = 15
	DefaultTmdbCooldownTransientMinutes = 15
	DefaultTmdbCooldownFailedMinutes    = 120
	DefaultTmdbCooldownInvalidDays      = 7
	DefaultTmdbResyncDays               = 14

	DefaultCollectionsRefreshInterval = 10 * time.Minute
)

// SetDefaults registers all default values on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)
	v.SetDefault("database.url", "")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("catalog.auto_sync", true)
	v.SetDefault("catalog.tick_interval", DefaultCatalogTick)
	v.SetDefault("catalog.default_interval_minutes", DefaultCatalogIntervalMinutes)
	v.SetDefault("catalog.deactivate_missing_vod", false)

	v.SetDefault("epg.auto_sync", true)
	v.SetDefault("epg.interval_minutes", DefaultEpgIntervalMinutes)
	v.SetDefault("epg.window_hours", DefaultEpgWindowHours)
	v.SetDefault("epg.enrich_descriptions", true)
	v.SetDefault("epg.enrich_max_desc_len", DefaultEpgMaxDescLen)
	v.SetDefault("epg.auto_match", false)
	v.SetDefault("epg.auto_match_min_score", DefaultEpgMinScore)

	v.SetDefault("tmdb.auto_sync", true)
	v.SetDefault("tmdb.interval_minutes", DefaultTmdbIntervalMinutes)
	v.SetDefault("tmdb.idle_minutes", DefaultTmdbIdleMinutes)
	v.SetDefault("tmdb.batch_movies", DefaultTmdbBatch)
	v.SetDefault("tmdb.batch_series", DefaultTmdbBatch)
	v.SetDefault("tmdb.workers", DefaultTmdbWorkers)
	v.SetDefault("tmdb.rps", DefaultTmdbRPS)
	v.SetDefault("tmdb.burst", DefaultTmdbBurst)
	v.SetDefault("tmdb.cooldown_missing_minutes", DefaultTmdbCooldownMissingMinutes)
	v.SetDefault("tmdb.cooldown_transient_minutes", DefaultTmdbCooldownTransientMinutes)
	v.SetDefault("tmdb.cooldown_failed_minutes", DefaultTmdbCooldownFailedMinutes)
	v.SetDefault("tmdb.cooldown_invalid_days", DefaultTmdbCooldownInvalidDays)
	v.SetDefault("tmdb.resync_days", DefaultTmdbResyncDays)

	v.SetDefault("playback.vlc_bin", "")

	v.SetDefault("collections.refresh_interval", DefaultCollectionsRefreshInterval)
	v.SetDefault("collections.stale_while_revalidate", true)
}

// legacyEnvBindings maps config keys to the unprefixed environment variable
// names retained for compatibility with existing deployments. A key may
// carry several names; the first one set wins.
var legacyEnvBindings = map[string][]string{
	"database.url":                    {"DATABASE_URL"},
	"epg.auto_sync":                   {"EPG_AUTO_SYNC"},
	"epg.interval_minutes":            {"EPG_AUTO_SYNC_MINUTES"},
	"epg.window_hours":                {"EPG_AUTO_SYNC_HOURS"},
	"epg.enrich_descriptions":         {"EPG_ENRICH_MISSING_DESC"},
	"epg.enrich_max_desc_len":         {"EPG_ENRICH_MAX_DESC_LEN"},
	"tmdb.auto_sync":                  {"TMDB_AUTO_SYNC"},
	"tmdb.interval_minutes":           {"TMDB_AUTO_SYNC_MINUTES"},
	"tmdb.batch_movies":               {"TMDB_AUTO_SYNC_BATCH_MOVIES"},
	"tmdb.batch_series":               {"TMDB_AUTO_SYNC_BATCH_SERIES"},
	"tmdb.idle_minutes":               {"TMDB_AUTO_SYNC_IDLE_MINUTES"},
	"tmdb.workers":                    {"TMDB_SYNC_WORKERS"},
	"tmdb.rps":                        {"TMDB_RPS"},
	"tmdb.burst":                      {"TMDB_BURST"},
	"tmdb.cooldown_missing_minutes":   {"TMDB_COOLDOWN_MISSING"},
	"tmdb.cooldown_transient_minutes": {"TMDB_COOLDOWN_TRANSIENT", "TMDB_AUTO_SYNC_COOLDOWN_MINUTES"},
	"tmdb.cooldown_failed_minutes":    {"TMDB_COOLDOWN_FAILED"},
	"tmdb.cooldown_invalid_days":      {"TMDB_COOLDOWN_INVALID_DAYS"},
	"tmdb.resync_days":                {"TMDB_RESYNC_DAYS"},
	"playback.vlc_bin":                {"VLC_BIN"},
}

// Load reads configuration from the optional file path, environment
// variables, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("MEDIARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range legacyEnvBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("mediarr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mediarr")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.applyDatabaseURL(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDatabaseURL resolves database.url into driver + DSN when set. The
// URL form wins over explicit driver/dsn settings.
func (c *Config) applyDatabaseURL() error {
	raw := strings.TrimSpace(c.Database.URL)
	if raw == "" {
		return nil
	}
	driver, dsn, err := ParseDatabaseURL(raw)
	if err != nil {
		return err
	}
	c.Database.Driver = driver
	c.Database.DSN = dsn
	return nil
}

// ParseDatabaseURL maps a scheme-prefixed database URL to a GORM driver
// name and DSN.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		path = strings.TrimPrefix(path, "/") // sqlite:///relative.db
		if path == "" {
			return "", "", fmt.Errorf("invalid database URL: empty sqlite path")
		}
		return "sqlite", path, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw, nil
	case strings.HasPrefix(raw, "mysql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("invalid database URL: %w", err)
		}
		pass, _ := u.User.Password()
		name := strings.TrimPrefix(u.Path, "/")
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", u.User.Username(), pass, u.Host, name), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %s", raw)
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Tmdb.Workers < 1 {
		return fmt.Errorf("tmdb workers must be at least 1")
	}
	if c.Tmdb.RPS <= 0 {
		return fmt.Errorf("tmdb rps must be positive")
	}
	if c.Epg.AutoMatchMinScore < 0 || c.Epg.AutoMatchMinScore > 1 {
		return fmt.Errorf("epg auto_match_min_score must be within [0,1]")
	}
	return nil
}
