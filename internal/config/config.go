// Package config handles loading and validation of service configuration.
// Supports both development (env vars / config file) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort              = "3000"
	DefaultStorefrontURL     = "https://ecwid-storefront.vercel.app/"
	DefaultWidgetTimeout     = 7 * time.Second
	DefaultMinBrowserVersion = "v112.0.0"
)

// Browser modes.
const (
	ModeLocal      = "local"
	ModeServerless = "serverless"
	ModeRemote     = "remote"
)

// versionCheckOff disables the browser version floor.
const versionCheckOff = "off"

// Config holds all service configuration.
// Environment determines whether storefront settings load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// CORSAllowedOrigins lists origins allowed to call the API. "*" allows any.
	CORSAllowedOrigins []string

	// GCP settings (required in production)
	GCPProject   string
	StorefrontID string // Names the secret holding storefront settings

	Storefront StorefrontConfig
	Browser    BrowserConfig
}

// StorefrontConfig describes the page hosting the widget.
type StorefrontConfig struct {
	URL           string
	WidgetTimeout time.Duration
	ActionTimeout time.Duration // Zero: bounded by the request only
}

// BrowserConfig describes how the headless browser is obtained.
type BrowserConfig struct {
	Mode               string // "local", "serverless", or "remote"
	Bin                string
	ControlURL         string
	Headless           bool
	Reuse              bool
	MinVersion         string // Semver floor; empty disables the check
	MaxConcurrentPages int64
	Flags              []string
}

// fileConfig is the shape of CONFIG_FILE (JSON or YAML) and of the
// production secret payload (JSON).
type fileConfig struct {
	Port               string   `json:"port" yaml:"port"`
	Environment        string   `json:"environment" yaml:"environment"`
	LogLevel           string   `json:"log_level" yaml:"log_level"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`

	Storefront struct {
		URL           string `json:"url" yaml:"url"`
		WidgetTimeout string `json:"widget_timeout" yaml:"widget_timeout"`
		ActionTimeout string `json:"action_timeout" yaml:"action_timeout"`
	} `json:"storefront" yaml:"storefront"`

	Browser struct {
		Mode               string   `json:"mode" yaml:"mode"`
		Bin                string   `json:"bin" yaml:"bin"`
		ControlURL         string   `json:"control_url" yaml:"control_url"`
		Headless           *bool    `json:"headless" yaml:"headless"`
		Reuse              *bool    `json:"reuse" yaml:"reuse"`
		MinVersion         string   `json:"min_version" yaml:"min_version"`
		MaxConcurrentPages int64    `json:"max_concurrent_pages" yaml:"max_concurrent_pages"`
		Flags              []string `json:"flags" yaml:"flags"`
	} `json:"browser" yaml:"browser"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars, overlaid by Secret Manager in production.
// Validates all settings and returns an error if any are invalid.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg, err := loadFromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StorefrontID == "" {
			return nil, fmt.Errorf("STOREFRONT_ID required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading storefront config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON or YAML file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:               withDefault(fc.Port, DefaultPort),
		Environment:        withDefault(fc.Environment, "development"),
		LogLevel:           withDefault(fc.LogLevel, "info"),
		CORSAllowedOrigins: fc.CORSAllowedOrigins,
		Browser: BrowserConfig{
			Headless: true,
			Reuse:    true,
		},
	}
	if err := cfg.merge(&fc); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv reads every setting from individual environment variables.
func loadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:               envOrDefault("PORT", DefaultPort),
		Environment:        envOrDefault("ENVIRONMENT", "development"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GCPProject:         os.Getenv("GCP_PROJECT"),
		StorefrontID:       os.Getenv("STOREFRONT_ID"),
		Storefront: StorefrontConfig{
			URL: os.Getenv("STOREFRONT_URL"),
		},
		Browser: BrowserConfig{
			Mode:       os.Getenv("BROWSER_MODE"),
			Bin:        os.Getenv("BROWSER_BIN"),
			ControlURL: os.Getenv("BROWSER_CONTROL_URL"),
			MinVersion: os.Getenv("BROWSER_MIN_VERSION"),
			Flags:      splitList(os.Getenv("BROWSER_FLAGS")),
		},
	}

	var err error
	if cfg.Storefront.WidgetTimeout, err = envDuration("WIDGET_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.Storefront.ActionTimeout, err = envDuration("ACTION_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.Browser.Headless, err = envBool("BROWSER_HEADLESS", true); err != nil {
		return nil, err
	}
	if cfg.Browser.Reuse, err = envBool("BROWSER_REUSE", true); err != nil {
		return nil, err
	}
	if v := os.Getenv("MAX_CONCURRENT_PAGES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing MAX_CONCURRENT_PAGES: %w", err)
		}
		cfg.Browser.MaxConcurrentPages = n
	}
	return cfg, nil
}

// loadFromSecretManager overlays storefront and browser settings from GCP
// Secret Manager.
// Secret name format: projects/{project}/secrets/{storefront_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StorefrontID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(result.Payload.Data, &fc); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return c.merge(&fc)
}

// merge copies the storefront and browser sections of fc over c.
// Empty values keep what c already has.
func (c *Config) merge(fc *fileConfig) error {
	if fc.Storefront.URL != "" {
		c.Storefront.URL = fc.Storefront.URL
	}
	if v := fc.Storefront.WidgetTimeout; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing widget_timeout: %w", err)
		}
		c.Storefront.WidgetTimeout = d
	}
	if v := fc.Storefront.ActionTimeout; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing action_timeout: %w", err)
		}
		c.Storefront.ActionTimeout = d
	}

	b := fc.Browser
	c.Browser.Mode = withDefault(b.Mode, c.Browser.Mode)
	c.Browser.Bin = withDefault(b.Bin, c.Browser.Bin)
	c.Browser.ControlURL = withDefault(b.ControlURL, c.Browser.ControlURL)
	c.Browser.MinVersion = withDefault(b.MinVersion, c.Browser.MinVersion)
	if b.Headless != nil {
		c.Browser.Headless = *b.Headless
	}
	if b.Reuse != nil {
		c.Browser.Reuse = *b.Reuse
	}
	if b.MaxConcurrentPages != 0 {
		c.Browser.MaxConcurrentPages = b.MaxConcurrentPages
	}
	if len(b.Flags) > 0 {
		c.Browser.Flags = b.Flags
	}
	return nil
}

// applyDefaults fills unset settings.
func (c *Config) applyDefaults() {
	if c.Storefront.URL == "" {
		c.Storefront.URL = DefaultStorefrontURL
	}
	if c.Storefront.WidgetTimeout == 0 {
		c.Storefront.WidgetTimeout = DefaultWidgetTimeout
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = detectMode()
	}
	switch c.Browser.MinVersion {
	case "":
		c.Browser.MinVersion = DefaultMinBrowserVersion
	case versionCheckOff:
		c.Browser.MinVersion = ""
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
}

// detectMode picks serverless when running on AWS Lambda or Cloud Run.
func detectMode() string {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" || os.Getenv("K_SERVICE") != "" {
		return ModeServerless
	}
	return ModeLocal
}

// validate checks that all configuration fields are usable.
func (c *Config) validate() error {
	if err := validateHTTPURL("storefront url", c.Storefront.URL); err != nil {
		return err
	}
	if c.Storefront.WidgetTimeout < 0 {
		return fmt.Errorf("widget timeout must be positive, got %s", c.Storefront.WidgetTimeout)
	}
	if c.Storefront.ActionTimeout < 0 {
		return fmt.Errorf("action timeout must not be negative, got %s", c.Storefront.ActionTimeout)
	}

	switch c.Browser.Mode {
	case ModeLocal, ModeServerless:
	case ModeRemote:
		if c.Browser.ControlURL == "" {
			return fmt.Errorf("browser control URL is required in remote mode")
		}
		u, err := url.Parse(c.Browser.ControlURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid browser control URL: %q", c.Browser.ControlURL)
		}
	default:
		return fmt.Errorf("unknown browser mode %q (want local, serverless, or remote)", c.Browser.Mode)
	}

	if c.Browser.MinVersion != "" && !semver.IsValid(c.Browser.MinVersion) {
		return fmt.Errorf("invalid browser min version %q (want semver like %s)", c.Browser.MinVersion, DefaultMinBrowserVersion)
	}
	if c.Browser.MaxConcurrentPages < 0 {
		return fmt.Errorf("max concurrent pages must not be negative")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for LogLevel. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel maps "debug", "info", "warn" (or "warning") and "error",
// in any case, to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (want debug, info, warn, or error)", s)
	}
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envBool parses a boolean environment variable.
func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

// envDuration parses a duration environment variable ("7s", "1500ms").
// Bare integers are read as milliseconds.
func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
