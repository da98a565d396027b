// Package config provides configuration management for the scraper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"earth911/internal/cache"
	"earth911/internal/logger"
	"earth911/internal/navigate"
	"earth911/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. EARTH911_SEARCH_TERM.
const EnvPrefix = "EARTH911"

// ErrConfigInvalid is returned when validation fails.
var ErrConfigInvalid = errors.New("invalid configuration")

// ValidationError represents an error in configuration validation
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrConfigInvalid }

// Config is the complete application configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Search  SearchConfig  `mapstructure:"search"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Output  OutputConfig  `mapstructure:"output"`
	Browser BrowserConfig `mapstructure:"browser"`
	Timing  TimingConfig  `mapstructure:"timing"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logger  logger.Config `mapstructure:"logger"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// SearchConfig describes the listing query.
type SearchConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Term        string `mapstructure:"term"`
	Location    string `mapstructure:"location"`
	RadiusMiles int    `mapstructure:"radius_miles"`
}

type ScrapeConfig struct {
	MaxFacilities int `mapstructure:"max_facilities"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// BrowserConfig configures the Chromium session.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"`
	ExecPath     string        `mapstructure:"exec_path"`
	UserAgent    string        `mapstructure:"user_agent"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
	OpTimeout    time.Duration `mapstructure:"op_timeout"`
}

// TimingConfig holds the settle bounds of the navigation loop.
type TimingConfig struct {
	ListingSettle   time.Duration `mapstructure:"listing_settle"`
	ReturnSettle    time.Duration `mapstructure:"return_settle"`
	ScrollSettle    time.Duration `mapstructure:"scroll_settle"`
	ClickSettle     time.Duration `mapstructure:"click_settle"`
	DetailSettle    time.Duration `mapstructure:"detail_settle"`
	MinLoadInterval time.Duration `mapstructure:"min_load_interval"`
}

type CacheConfig struct {
	Backend           string        `mapstructure:"backend"`
	SqlitePath        string        `mapstructure:"sqlite_path"`
	MemcachedEndpoint string        `mapstructure:"memcached_endpoint"`
	TTL               time.Duration `mapstructure:"ttl"`
	// ExpirySeconds overrides TTL when set, for CACHE_EXPIRY_SECONDS.
	ExpirySeconds string `mapstructure:"expiry_seconds"`
}

// Defaults.
const (
	DefaultBaseURL   = "https://search.earth911.com/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultOutput    = "recycling_facilities.csv"
	DefaultCacheTTL  = 72 * time.Hour
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.debug", false)

	v.SetDefault("search.base_url", DefaultBaseURL)
	v.SetDefault("search.term", "Electronics")
	v.SetDefault("search.location", "10001")
	v.SetDefault("search.radius_miles", 100)

	v.SetDefault("scrape.max_facilities", 3)
	v.SetDefault("output.path", DefaultOutput)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.op_timeout", 30*time.Second)

	v.SetDefault("timing.listing_settle", 8*time.Second)
	v.SetDefault("timing.return_settle", 5*time.Second)
	v.SetDefault("timing.scroll_settle", 2*time.Second)
	v.SetDefault("timing.click_settle", 3*time.Second)
	v.SetDefault("timing.detail_settle", 3*time.Second)
	v.SetDefault("timing.min_load_interval", time.Duration(0))

	v.SetDefault("cache.backend", cache.BackendNone)
	v.SetDefault("cache.sqlite_path", "./earth911.db")
	v.SetDefault("cache.memcached_endpoint", "localhost:11211")
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.expiry_seconds", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.development", false)
}

// Setup prepares v to read the optional config file, .env and the
// environment. configFile may be empty.
func Setup(v *viper.Viper, configFile string) error {
	// .env is optional.
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	SetDefaults(v)

	if err := bindLegacyEnv(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv maps the unprefixed variables used by deployments.
func bindLegacyEnv(v *viper.Viper) error {
	binds := map[string]string{
		"app.environment":          "APP_ENV",
		"logger.level":             "LOG_LEVEL",
		"cache.expiry_seconds":     "CACHE_EXPIRY_SECONDS",
		"cache.memcached_endpoint": "MEMCACHED_DISCOVERY_ENDPOINT",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Cache.TTL = cache.ParseExpiry(cfg.Cache.ExpirySeconds, cfg.Cache.TTL)
	if cfg.App.Debug {
		cfg.Logger.Level = "debug"
	}
	if cfg.App.Environment == "development" {
		cfg.Logger.Development = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the scraper cannot run with.
func (c *Config) Validate() error {
	base, err := url.Parse(c.Search.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return &ValidationError{Field: "search.base_url", Value: c.Search.BaseURL, Reason: "must be an absolute http(s) URL"}
	}
	if strings.TrimSpace(c.Search.Term) == "" {
		return &ValidationError{Field: "search.term", Value: c.Search.Term, Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Search.Location) == "" {
		return &ValidationError{Field: "search.location", Value: c.Search.Location, Reason: "must not be empty"}
	}
	if c.Search.RadiusMiles <= 0 {
		return &ValidationError{Field: "search.radius_miles", Value: c.Search.RadiusMiles, Reason: "must be positive"}
	}
	if c.Scrape.MaxFacilities <= 0 {
		return &ValidationError{Field: "scrape.max_facilities", Value: c.Scrape.MaxFacilities, Reason: "must be positive"}
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return &ValidationError{Field: "output.path", Value: c.Output.Path, Reason: "must not be empty"}
	}

	timings := map[string]time.Duration{
		"timing.listing_settle":    c.Timing.ListingSettle,
		"timing.return_settle":     c.Timing.ReturnSettle,
		"timing.scroll_settle":     c.Timing.ScrollSettle,
		"timing.click_settle":      c.Timing.ClickSettle,
		"timing.detail_settle":     c.Timing.DetailSettle,
		"timing.min_load_interval": c.Timing.MinLoadInterval,
	}
	for field, d := range timings {
		if d < 0 {
			return &ValidationError{Field: field, Value: d, Reason: "must not be negative"}
		}
	}

	switch strings.ToLower(c.Cache.Backend) {
	case cache.BackendNone, cache.BackendSqlite, cache.BackendMemcached, cache.BackendAuto:
	default:
		return &ValidationError{Field: "cache.backend", Value: c.Cache.Backend, Reason: "must be one of none, sqlite, memcached, auto"}
	}
	return nil
}

// ListingURL builds the search listing URL.
func (c *Config) ListingURL() string {
	return fmt.Sprintf("%s?what=%s&where=%s&list_filter=all&max_distance=%d",
		c.Search.BaseURL,
		url.QueryEscape(c.Search.Term),
		url.QueryEscape(c.Search.Location),
		c.Search.RadiusMiles,
	)
}

// CacheKey identifies the result set of this configuration's query.
func (c *Config) CacheKey() string {
	return cache.Key(c.ListingURL(), c.Scrape.MaxFacilities)
}

// Navigation returns the controller settings.
func (c *Config) Navigation() navigate.Config {
	return navigate.Config{
		ListingURL:      c.ListingURL(),
		MaxFacilities:   c.Scrape.MaxFacilities,
		ListingSettle:   c.Timing.ListingSettle,
		ReturnSettle:    c.Timing.ReturnSettle,
		ClickSettle:     c.Timing.ClickSettle,
		DetailSettle:    c.Timing.DetailSettle,
		ScrollSettle:    c.Timing.ScrollSettle,
		MinLoadInterval: c.Timing.MinLoadInterval,
	}
}

// ChromeOptions returns the browser launch options.
func (c *Config) ChromeOptions() session.ChromeOptions {
	return session.ChromeOptions{
		Headless:     c.Browser.Headless,
		ExecPath:     c.Browser.ExecPath,
		UserAgent:    c.Browser.UserAgent,
		WindowWidth:  c.Browser.WindowWidth,
		WindowHeight: c.Browser.WindowHeight,
		OpTimeout:    c.Browser.OpTimeout,
	}
}

// CacheSettings returns the cache backend settings.
func (c *Config) CacheSettings() cache.Config {
	return cache.Config{
		Backend:           c.Cache.Backend,
		Environment:       c.App.Environment,
		SqlitePath:        c.Cache.SqlitePath,
		MemcachedEndpoint: c.Cache.MemcachedEndpoint,
	}
}
