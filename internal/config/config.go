package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir        string            `toml:"data_dir"`
	CacheFile      string            `toml:"cache_file"`
	HistoryBackend string            `toml:"history_backend"`
	HistoryFile    string            `toml:"history_file"`
	Provider       string            `toml:"provider"`
	Mirror         string            `toml:"mirror"`
	Timeout        Duration          `toml:"timeout"`
	MaxRetries     int               `toml:"max_retries"`
	CacheFallback  bool              `toml:"cache_fallback"`
	CatalogTTL     Duration          `toml:"catalog_ttl"`
	LogLevel       string            `toml:"log_level"`
	LogFormat      string            `toml:"log_format"`
	LogFile        string            `toml:"log_file"`
	DisabledApps   []string          `toml:"disabled_apps"`
	AppPaths       map[string]string `toml:"app_paths"`
}

// Duration is a time.Duration that reads and writes as a string ("10m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ipfilter"
	}
	return filepath.Join(home, ".ipfilter")
}

// Path is the location of the user's config file.
func Path() string {
	return filepath.Join(baseDir(), "config.toml")
}

func DefaultConfig() *Config {
	base := baseDir()

	return &Config{
		DataDir:        base,
		CacheFile:      filepath.Join(base, "ipfilter.dat"),
		HistoryBackend: "sqlite",
		HistoryFile:    filepath.Join(base, "history.db"),
		Provider:       "davidmoore",
		Timeout:        Duration{10 * time.Minute},
		MaxRetries:     3,
		CatalogTTL:     Duration{24 * time.Hour},
		LogLevel:       "warn",
		LogFormat:      "text",
		AppPaths:       map[string]string{},
	}
}

// Load reads the user's config file, writing the defaults on first use.
func Load() (*Config, error) {
	path := Path()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not write default config: %v\n", err)
		}
		return cfg, nil
	}

	return LoadFrom(path)
}

func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case "sqlite", "json":
	default:
		return fmt.Errorf("unknown history_backend %q", c.HistoryBackend)
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.CacheFile == "" {
		return fmt.Errorf("cache_file is required")
	}
	return nil
}

func (c *Config) AppEnabled(name string) bool {
	for _, d := range c.DisabledApps {
		if d == name {
			return false
		}
	}
	return true
}
