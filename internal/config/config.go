package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
)

// Ledger drivers.
const (
	LedgerFile  = "file"
	LedgerRedis = "redis"
)

// reservedNames are path segments under /api that cannot name a collection.
var reservedNames = map[string]struct{}{
	"items":  {},
	"search": {},
}

// Config holds the qfwiki API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
	Content  ContentConfig  `yaml:"content"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Database DatabaseConfig `yaml:"database"`
	Sitemap  SitemapConfig  `yaml:"sitemap"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// ContentConfig describes where collections live.
type ContentConfig struct {
	DataDir     string             `yaml:"data_dir"`
	Watch       bool               `yaml:"watch"`
	Collections []CollectionConfig `yaml:"collections"`
}

// CollectionConfig describes one collection file.
type CollectionConfig struct {
	Name         string               `yaml:"name"`
	File         string               `yaml:"file"`
	Singular     string               `yaml:"singular"`
	Slug         string               `yaml:"slug"` // generic (default), question, none
	Interactions bool                 `yaml:"interactions"`
	Sitemap      CollectionSitemapCfg `yaml:"sitemap"`
}

// CollectionSitemapCfg describes a collection's sitemap entries.
type CollectionSitemapCfg struct {
	Enabled            bool            `yaml:"enabled"`
	Path               string          `yaml:"path"`
	ChangeFreq         string          `yaml:"changefreq"`
	Priority           float64         `yaml:"priority"`
	DateField          string          `yaml:"date_field"`
	FallbackDateFields []string        `yaml:"fallback_date_fields"`
	Index              SitemapIndexCfg `yaml:"index"`
}

// SitemapIndexCfg groups documents by a field into extra index pages.
type SitemapIndexCfg struct {
	Field      string  `yaml:"field"`
	Path       string  `yaml:"path"`
	ChangeFreq string  `yaml:"changefreq"`
	Priority   float64 `yaml:"priority"`
}

// LedgerConfig selects the interaction ledger backend.
type LedgerConfig struct {
	Driver string `yaml:"driver"` // file (default), redis
	Path   string `yaml:"path"`
}

// DatabaseConfig holds Redis connection settings for the redis ledger driver.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// SitemapConfig holds sitemap generation settings.
type SitemapConfig struct {
	BaseURL     string       `yaml:"base_url"`
	MaxEntries  int          `yaml:"max_entries"`
	MaxBytes    int          `yaml:"max_bytes"`
	CacheTTLSec int          `yaml:"cache_ttl_sec"`
	MaxAgeSec   int          `yaml:"max_age_sec"`
	Concurrency int          `yaml:"concurrency"`
	Exclude     []string     `yaml:"exclude"`
	Static      []StaticPage `yaml:"static"`
}

// StaticPage is a fixed sitemap path.
type StaticPage struct {
	Path       string  `yaml:"path"`
	ChangeFreq string  `yaml:"changefreq"`
	Priority   float64 `yaml:"priority"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Content.DataDir == "" {
		c.Content.DataDir = "data"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerFile
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.Content.DataDir, "blog_interactions.json")
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "qfwiki:"
	}
	if c.Sitemap.MaxEntries <= 0 {
		c.Sitemap.MaxEntries = sitemap.DefaultMaxEntries
	}
	if c.Sitemap.MaxBytes <= 0 {
		c.Sitemap.MaxBytes = sitemap.DefaultMaxBytes
	}
	if c.Sitemap.CacheTTLSec < 0 {
		c.Sitemap.CacheTTLSec = 0
	}
	if c.Sitemap.MaxAgeSec <= 0 {
		c.Sitemap.MaxAgeSec = 3600
	}
	if c.Sitemap.Concurrency <= 0 {
		c.Sitemap.Concurrency = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Ledger.Driver {
	case LedgerFile:
	case LedgerRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis ledger driver")
		}
	default:
		return fmt.Errorf("ledger.driver must be %q or %q, got %q", LedgerFile, LedgerRedis, c.Ledger.Driver)
	}
	if len(c.Content.Collections) == 0 {
		return fmt.Errorf("content.collections must not be empty")
	}
	for _, col := range c.Content.Collections {
		if _, ok := reservedNames[col.Name]; ok {
			return fmt.Errorf("content.collections: name %q is reserved", col.Name)
		}
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("content.collections: %w", err)
	}
	for i, p := range c.Sitemap.Static {
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("sitemap.static[%d].path must start with /, got %q", i, p.Path)
		}
		if _, err := optionalFreq(p.ChangeFreq); err != nil {
			return fmt.Errorf("sitemap.static[%d]: %w", i, err)
		}
	}
	if c.sitemapEnabled() && c.Sitemap.BaseURL == "" {
		return fmt.Errorf("sitemap.base_url is required when any collection is in the sitemap")
	}
	return nil
}

func (c *Config) sitemapEnabled() bool {
	if len(c.Sitemap.Static) > 0 {
		return true
	}
	for _, col := range c.Content.Collections {
		if col.Sitemap.Enabled {
			return true
		}
	}
	return false
}

// Registry builds the validated collection registry, in configuration order.
func (c *Config) Registry() (*domcol.Registry, error) {
	cols := make([]domcol.Collection, 0, len(c.Content.Collections))
	for _, cc := range c.Content.Collections {
		col, err := cc.toDomain()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return domcol.NewRegistry(cols) //nolint:wrapcheck // caller adds context
}

func (cc CollectionConfig) toDomain() (domcol.Collection, error) {
	freq, err := optionalFreq(cc.Sitemap.ChangeFreq)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("collection %s: %w", cc.Name, err)
	}
	indexFreq, err := optionalFreq(cc.Sitemap.Index.ChangeFreq)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("collection %s index: %w", cc.Name, err)
	}
	return domcol.New(domcol.Params{ //nolint:wrapcheck // New names the collection
		Name:         cc.Name,
		File:         cc.File,
		Singular:     cc.Singular,
		Slug:         slug.Rule(cc.Slug),
		Interactions: cc.Interactions,
		Sitemap: domcol.Sitemap{
			Enabled:            cc.Sitemap.Enabled,
			Path:               cc.Sitemap.Path,
			ChangeFreq:         freq,
			Priority:           cc.Sitemap.Priority,
			DateField:          cc.Sitemap.DateField,
			FallbackDateFields: cc.Sitemap.FallbackDateFields,
			IndexField:         cc.Sitemap.Index.Field,
			IndexPath:          cc.Sitemap.Index.Path,
			IndexPriority:      cc.Sitemap.Index.Priority,
			IndexChangeFreq:    indexFreq,
		},
	})
}

// optionalFreq parses a change frequency, treating empty as unset.
func optionalFreq(s string) (sitemap.ChangeFreq, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return sitemap.ParseChangeFreq(s) //nolint:wrapcheck // message names the value
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
