// Package config loads reaniname's TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/paths"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// REANINAME_CATALOG_API_KEY.
const EnvPrefix = "REANINAME"

// Modes lists the placement modes accepted in [library].mode.
var Modes = []string{"move", "copy", "link", "symlink"}

type Config struct {
	Library    LibraryConfig    `mapstructure:"library" toml:"library"`
	Classifier ClassifierConfig `mapstructure:"classifier" toml:"classifier"`
	Catalog    CatalogConfig    `mapstructure:"catalog" toml:"catalog"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" toml:"pipeline"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	Watch      WatchConfig      `mapstructure:"watch" toml:"watch"`
	History    HistoryConfig    `mapstructure:"history" toml:"history"`
	Logging    logging.Config   `mapstructure:"logging" toml:"logging"`
	Presets    []Preset         `mapstructure:"presets" toml:"presets"`
}

// LibraryConfig describes where files come from and how they are placed.
type LibraryConfig struct {
	ScanPath  string `mapstructure:"scan_path" toml:"scan_path"`
	OutputDir string `mapstructure:"output_dir" toml:"output_dir"`
	Mode      string `mapstructure:"mode" toml:"mode"`
	MinSizeMB int    `mapstructure:"min_size_mb" toml:"min_size_mb"`
	Recursive bool   `mapstructure:"recursive" toml:"recursive"`
	Overwrite bool   `mapstructure:"overwrite" toml:"overwrite"`
	// DirMode is octal ("0755" or "755"); empty means 0755.
	DirMode string `mapstructure:"dir_mode" toml:"dir_mode"`
}

type CircuitBreakerConfig struct {
	FailureThreshold     int `mapstructure:"failure_threshold" toml:"failure_threshold"`
	FailureWindowSeconds int `mapstructure:"failure_window_seconds" toml:"failure_window_seconds"`
	CooldownSeconds      int `mapstructure:"cooldown_seconds" toml:"cooldown_seconds"`
}

// ClassifierConfig configures the OpenAI-compatible filename classifier.
// An empty APIKey selects the offline heuristic classifier.
type ClassifierConfig struct {
	APIKey            string               `mapstructure:"api_key" toml:"api_key"`
	BaseURL           string               `mapstructure:"base_url" toml:"base_url"`
	Model             string               `mapstructure:"model" toml:"model"`
	TimeoutSeconds    int                  `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	RequestsPerMinute int                  `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker" toml:"circuit_breaker"`
}

// CatalogConfig configures TMDB. An empty APIKey disables enrichment.
type CatalogConfig struct {
	APIKey            string  `mapstructure:"api_key" toml:"api_key"`
	BaseURL           string  `mapstructure:"base_url" toml:"base_url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`
	DetailsLanguage   string  `mapstructure:"details_language" toml:"details_language"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers" toml:"workers"`
	// BatchTimeout is a Go duration ("30m"); empty or "0" disables it.
	BatchTimeout string `mapstructure:"batch_timeout" toml:"batch_timeout"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" toml:"addr"`
	WebhookSecret  string   `mapstructure:"webhook_secret" toml:"webhook_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// WatchConfig lists inbox directories for the daemon.
type WatchConfig struct {
	Paths        []string `mapstructure:"paths" toml:"paths"`
	Debounce     string   `mapstructure:"debounce" toml:"debounce"`
	ScanInterval string   `mapstructure:"scan_interval" toml:"scan_interval"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" toml:"path"`
}

// Preset is a named bundle of placement and classifier settings.
type Preset struct {
	Name          string `mapstructure:"name" toml:"name"`
	Mode          string `mapstructure:"mode" toml:"mode"`
	MinSizeMB     int    `mapstructure:"min_size_mb" toml:"min_size_mb"`
	APIKey        string `mapstructure:"api_key" toml:"api_key,omitempty"`
	BaseURL       string `mapstructure:"base_url" toml:"base_url,omitempty"`
	Model         string `mapstructure:"model" toml:"model,omitempty"`
	CatalogAPIKey string `mapstructure:"catalog_api_key" toml:"catalog_api_key,omitempty"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Mode:      "link",
			MinSizeMB: 50,
			Recursive: true,
		},
		Classifier: ClassifierConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-3.5-turbo",
			TimeoutSeconds:    60,
			RequestsPerMinute: 60,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:     5,
				FailureWindowSeconds: 120,
				CooldownSeconds:      30,
			},
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			TimeoutSeconds:    15,
			RequestsPerSecond: 20,
			DetailsLanguage:   "zh-CN",
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Addr:           ":8787",
			AllowedOrigins: []string{"*"},
		},
		Watch: WatchConfig{
			Paths:    []string{},
			Debounce: "10s",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: logging.DefaultConfig(),
		Presets: []Preset{
			{Name: "Default", Mode: "link", MinSizeMB: 50, Model: "gpt-3.5-turbo"},
		},
	}
}

// envKeys are the settings that can be overridden from the environment.
var envKeys = []string{
	"library.scan_path", "library.output_dir", "library.mode", "library.min_size_mb",
	"classifier.api_key", "classifier.base_url", "classifier.model",
	"catalog.api_key", "catalog.base_url",
	"pipeline.workers", "pipeline.batch_timeout",
	"server.addr", "server.webhook_secret",
	"logging.level", "logging.file",
	"history.enabled",
}

// Load reads the default config file, falling back to defaults when it
// does not exist.
func Load() (*Config, error) {
	configPath, err := paths.ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from path and applies REANINAME_* overrides.
func LoadFrom(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a batch cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Modes, c.Library.Mode) {
		errs = append(errs, fmt.Errorf("library.mode %q must be one of %s", c.Library.Mode, strings.Join(Modes, ", ")))
	}
	if c.Library.MinSizeMB < 0 {
		errs = append(errs, fmt.Errorf("library.min_size_mb must not be negative"))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers))
	}
	if _, err := c.Pipeline.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Library.ParseDirMode(); err != nil {
		errs = append(errs, err)
	}
	for _, d := range []string{c.Watch.Debounce, c.Watch.ScanInterval} {
		if _, err := parseDuration(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyPreset copies the named preset over the library and classifier
// settings. Empty preset fields leave the current value alone.
func (c *Config) ApplyPreset(name string) error {
	idx := slices.IndexFunc(c.Presets, func(p Preset) bool { return strings.EqualFold(p.Name, name) })
	if idx < 0 {
		return fmt.Errorf("preset %q not found", name)
	}
	p := c.Presets[idx]
	if p.Mode != "" {
		c.Library.Mode = p.Mode
	}
	if p.MinSizeMB > 0 {
		c.Library.MinSizeMB = p.MinSizeMB
	}
	if p.APIKey != "" {
		c.Classifier.APIKey = p.APIKey
	}
	if p.BaseURL != "" {
		c.Classifier.BaseURL = p.BaseURL
	}
	if p.Model != "" {
		c.Classifier.Model = p.Model
	}
	if p.CatalogAPIKey != "" {
		c.Catalog.APIKey = p.CatalogAPIKey
	}
	return nil
}

// MinSizeBytes converts min_size_mb to bytes.
func (l LibraryConfig) MinSizeBytes() int64 {
	return int64(l.MinSizeMB) << 20
}

func (l LibraryConfig) ParseDirMode() (os.FileMode, error) {
	m := strings.TrimSpace(l.DirMode)
	if m == "" {
		return 0755, nil
	}
	if len(m) == 3 {
		m = "0" + m
	}
	v, err := strconv.ParseUint(m, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("library.dir_mode %q: %w", l.DirMode, err)
	}
	return os.FileMode(v), nil
}

// Timeout returns the batch timeout; zero means none.
func (p PipelineConfig) Timeout() (time.Duration, error) {
	return parseDuration(p.BatchTimeout)
}

func (w WatchConfig) DebounceDuration() time.Duration {
	d, _ := parseDuration(w.Debounce)
	return d
}

func (w WatchConfig) ScanEvery() time.Duration {
	d, _ := parseDuration(w.ScanInterval)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	configFile, err := paths.ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configFile)
}

// SaveTo writes the config as TOML to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create config dir: %w", err)
	}
	data, err := c.ToTOML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ToTOML renders the config with a short header.
func (c *Config) ToTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# reaniname configuration\n# Generated by: reaniname config init\n\n")
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Classifier.APIKey = mask(c.Classifier.APIKey)
	out.Catalog.APIKey = mask(c.Catalog.APIKey)
	out.Server.WebhookSecret = mask(c.Server.WebhookSecret)
	out.Presets = make([]Preset, len(c.Presets))
	for i, p := range c.Presets {
		p.APIKey = mask(p.APIKey)
		p.CatalogAPIKey = mask(p.CatalogAPIKey)
		out.Presets[i] = p
	}
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 6) + s[len(s)-2:]
}

func ConfigExists() bool {
	path, err := paths.ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
