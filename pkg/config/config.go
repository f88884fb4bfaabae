package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	DB           DBConfig           `yaml:"db"`
	Request      RequestConfig      `yaml:"request"`
	Source       SourceConfig       `yaml:"source"`
	Dataset      DatasetConfig      `yaml:"dataset"`
	Session      SessionConfig      `yaml:"session"`
	View         ViewConfig         `yaml:"view"`
	Contact      ContactConfig      `yaml:"contact"`
	Bibliography BibliographyConfig `yaml:"bibliography"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address       string          `yaml:"address"`
	StaticDir     string          `yaml:"static_dir"`
	SecureCookies bool            `yaml:"secure_cookies"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig throttles write endpoints per client IP.
type RateLimitConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	Trace    bool        `yaml:"trace"` // per-request debug lines such as camera reports
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path        string   `yaml:"path"`
	CacheMaxAge Duration `yaml:"cache_max_age"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// SourceConfig selects where story rows come from.
type SourceConfig struct {
	Kind        string `yaml:"kind"` // rest, postgres, sqlite, static
	URL         string `yaml:"url"`
	Table       string `yaml:"table"`
	Key         string `yaml:"key"`
	PageSize    int    `yaml:"page_size"`
	DatabaseURL string `yaml:"database_url"`
	ImportFile  string `yaml:"import_file"` // CSV mirrored into the sqlite source
}

// DatasetConfig holds record cache settings.
type DatasetConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
	FetchTimeout    Duration `yaml:"fetch_timeout"`
	NarrativeSeed   uint64   `yaml:"narrative_seed"`
	Timeframe       string   `yaml:"timeframe"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	Store         string   `yaml:"store"` // memory, redis
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	TTL           Duration `yaml:"ttl"`
	MaxIdle       Duration `yaml:"max_idle"`
	EvictInterval Duration `yaml:"evict_interval"`
	PruneInterval Duration `yaml:"prune_interval"`
}

// ViewConfig holds map camera defaults.
type ViewConfig struct {
	DetailZoom  float64  `yaml:"detail_zoom"`
	FlyDuration Duration `yaml:"fly_duration"`
	SnapshotTTL Duration `yaml:"snapshot_ttl"`
	DefaultLng  float64  `yaml:"default_lng"`
	DefaultLat  float64  `yaml:"default_lat"`
	DefaultZoom float64  `yaml:"default_zoom"`
}

// ContactConfig holds the contact sink settings.
type ContactConfig struct {
	WebhookURL   string   `yaml:"webhook_url"`
	WebhookToken string   `yaml:"webhook_token"`
	Timeout      Duration `yaml:"timeout"`
}

// BibliographyConfig holds source title lookup settings.
type BibliographyConfig struct {
	Timeout     Duration `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:   "localhost:8080",
			StaticDir: "./web/dist",
			RateLimit: RateLimitConfig{
				PerMinute: 10,
				Burst:     5,
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:        "./data/exportmap.db",
			CacheMaxAge: Duration(7 * Day),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Source: SourceConfig{
			Kind:     "rest",
			Table:    "export_success_stories",
			PageSize: 500,
		},
		Dataset: DatasetConfig{
			RefreshInterval: Duration(6 * time.Hour),
			FetchTimeout:    Duration(30 * time.Second),
			NarrativeSeed:   0,
			Timeframe:       "1995-2022",
		},
		Session: SessionConfig{
			Store:         "memory",
			RedisAddr:     "localhost:6379",
			TTL:           Duration(time.Hour),
			MaxIdle:       Duration(2 * time.Hour),
			EvictInterval: Duration(5 * time.Minute),
			PruneInterval: Duration(time.Hour),
		},
		View: ViewConfig{
			DetailZoom:  5,
			FlyDuration: Duration(1500 * time.Millisecond),
			SnapshotTTL: Duration(time.Hour),
			DefaultLng:  0,
			DefaultLat:  20,
			DefaultZoom: 2,
		},
		Contact: ContactConfig{
			Timeout: Duration(15 * time.Second),
		},
		Bibliography: BibliographyConfig{
			Timeout:     Duration(10 * time.Second),
			Concurrency: 8,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Secrets come from the environment when the file leaves them empty.
	applyEnv(&cfg.Source.Key, "EXPORTMAP_SOURCE_KEY")
	applyEnv(&cfg.Source.URL, "EXPORTMAP_SOURCE_URL")
	applyEnv(&cfg.Source.DatabaseURL, "EXPORTMAP_DATABASE_URL")
	applyEnv(&cfg.Contact.WebhookURL, "EXPORTMAP_CONTACT_WEBHOOK")
	applyEnv(&cfg.Contact.WebhookToken, "EXPORTMAP_CONTACT_TOKEN")
	applyEnv(&cfg.Session.RedisAddr, "EXPORTMAP_REDIS_ADDR")
	applyEnv(&cfg.Session.RedisPassword, "EXPORTMAP_REDIS_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(field *string, key string) {
	if *field != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "rest", "postgres", "sqlite", "static":
	default:
		return fmt.Errorf("invalid source.kind %q: must be rest, postgres, sqlite or static", c.Source.Kind)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid session.store %q: must be memory or redis", c.Session.Store)
	}
	if c.View.DetailZoom < 1 || c.View.DetailZoom > 20 {
		return fmt.Errorf("invalid view.detail_zoom %v: must be within [1, 20]", c.View.DetailZoom)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# exportmap Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Secrets may be left empty and supplied via EXPORTMAP_* environment variables.

`)
	data = append(header, data...)

	// Inject comments for enum fields.
	reKind := regexp.MustCompile(`(?m)^(\s+)kind:`)
	data = reKind.ReplaceAll(data, []byte("${1}# Options: rest, postgres, sqlite, static\n${1}kind:"))

	reStore := regexp.MustCompile(`(?m)^(\s+)store:`)
	data = reStore.ReplaceAll(data, []byte("${1}# Options: memory, redis\n${1}store:"))

	reSeed := regexp.MustCompile(`(?m)^(\s+)narrative_seed:`)
	data = reSeed.ReplaceAll(data, []byte("${1}# Changes which summary template each story gets\n${1}narrative_seed:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
