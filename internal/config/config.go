package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Field scopes understood by the backend search script.
const (
	FieldScopePart = "part" // partial/substring matching
	FieldScopeAll  = "all"  // full-text-wide matching
)

// Config holds application configuration.
type Config struct {
	// FrequencyWeight multiplies a record's pick count before it is added to
	// the backend relevance score. Nil means use the default; 0 disables
	// frequency boosting.
	FrequencyWeight *float64 `json:"frequency_weight,omitempty"`

	// MaxResultCount caps the number of results requested from the backend.
	// Nil means use the default; 0 disables the cap.
	// Disabling the cap may make large databases noticeably slower.
	MaxResultCount *int `json:"max_result_count,omitempty"`

	// FieldScope is the field matching mode used for synchronization queries.
	FieldScope string `json:"field_scope,omitempty"`

	// ExcludedTag hides records carrying this tag from every search.
	// Empty disables the exclusion.
	ExcludedTag *string `json:"excluded_tag,omitempty"`

	// StrictStaleness makes the delta path compare identifier sets instead of
	// counts. Catches offsetting inserts/deletes at the cost of decoding the
	// whole until-query result.
	StrictStaleness bool `json:"strict_staleness,omitempty"`

	// ContentCacheLimit bounds the number of cached record payloads.
	// Least recently accessed entries are evicted first.
	// Nil means use the default; 0 disables eviction.
	ContentCacheLimit *int `json:"content_cache_limit,omitempty"`

	// FetchConcurrency limits parallel content fetches during one resolve.
	FetchConcurrency int `json:"fetch_concurrency,omitempty"`

	// ScriptDir is the directory holding search.js, record.js and group.js.
	// Their argument and output formats are documented in package backend;
	// search.js must support the batch form used for delta queries.
	// Defaults to <baseDir>/scripts.
	ScriptDir string `json:"script_dir,omitempty"`

	// ResourcesPath is the LaunchBar action resources directory (icons).
	ResourcesPath string `json:"resources_path,omitempty"`

	// BackendTimeoutSeconds bounds one CLI invocation's backend work.
	// 0 means no timeout.
	BackendTimeoutSeconds int `json:"backend_timeout_seconds,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// Defaults
const (
	DefaultFrequencyWeight   = 2.0
	DefaultMaxResultCount    = 80
	DefaultExcludedTag       = "exclude-from-launchbar"
	DefaultContentCacheLimit = 5000
	DefaultFetchConcurrency  = 4
	DefaultLogLevel          = "info"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	weight := DefaultFrequencyWeight
	limit := DefaultMaxResultCount
	tag := DefaultExcludedTag
	cacheLimit := DefaultContentCacheLimit
	return &Config{
		FrequencyWeight:   &weight,
		MaxResultCount:    &limit,
		FieldScope:        FieldScopePart,
		ExcludedTag:       &tag,
		ContentCacheLimit: &cacheLimit,
		FetchConcurrency:  DefaultFetchConcurrency,
		LogLevel:          DefaultLogLevel,
	}
}

// Weight returns the effective frequency weight.
func (c *Config) Weight() float64 {
	if c.FrequencyWeight == nil {
		return DefaultFrequencyWeight
	}
	return *c.FrequencyWeight
}

// ResultLimit returns the effective backend result cap (0 = no cap).
func (c *Config) ResultLimit() int {
	if c.MaxResultCount == nil {
		return DefaultMaxResultCount
	}
	return *c.MaxResultCount
}

// Tag returns the effective excluded tag ("" = none).
func (c *Config) Tag() string {
	if c.ExcludedTag == nil {
		return DefaultExcludedTag
	}
	return strings.TrimSpace(*c.ExcludedTag)
}

// CacheLimit returns the effective content cache entry limit (0 = unbounded).
func (c *Config) CacheLimit() int {
	if c.ContentCacheLimit == nil {
		return DefaultContentCacheLimit
	}
	return *c.ContentCacheLimit
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.FrequencyWeight != nil && *c.FrequencyWeight < 0 {
		return fmt.Errorf("frequency_weight must be non-negative, got %v", *c.FrequencyWeight)
	}
	if c.MaxResultCount != nil && *c.MaxResultCount < 0 {
		return fmt.Errorf("max_result_count must be non-negative, got %d", *c.MaxResultCount)
	}
	switch c.FieldScope {
	case "", FieldScopePart, FieldScopeAll:
	default:
		return fmt.Errorf("invalid field_scope %q: must be %q or %q", c.FieldScope, FieldScopePart, FieldScopeAll)
	}
	if c.ContentCacheLimit != nil && *c.ContentCacheLimit < 0 {
		return fmt.Errorf("content_cache_limit must be non-negative, got %d", *c.ContentCacheLimit)
	}
	if c.FetchConcurrency < 0 {
		return fmt.Errorf("fetch_concurrency must be non-negative, got %d", c.FetchConcurrency)
	}
	if c.BackendTimeoutSeconds < 0 {
		return fmt.Errorf("backend_timeout_seconds must be non-negative, got %d", c.BackendTimeoutSeconds)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.dtbar.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Join(baseDir, "scripts")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Pointers: overlay wins if set, so an explicit 0 survives
	result.FrequencyWeight = overlay.FrequencyWeight
	if result.FrequencyWeight == nil {
		result.FrequencyWeight = base.FrequencyWeight
	}
	result.MaxResultCount = overlay.MaxResultCount
	if result.MaxResultCount == nil {
		result.MaxResultCount = base.MaxResultCount
	}
	result.ExcludedTag = overlay.ExcludedTag
	if result.ExcludedTag == nil {
		result.ExcludedTag = base.ExcludedTag
	}
	result.ContentCacheLimit = overlay.ContentCacheLimit
	if result.ContentCacheLimit == nil {
		result.ContentCacheLimit = base.ContentCacheLimit
	}

	// Scalars: overlay wins if non-zero, else base
	result.FieldScope = firstNonEmpty(overlay.FieldScope, base.FieldScope)
	result.ScriptDir = firstNonEmpty(overlay.ScriptDir, base.ScriptDir)
	result.ResourcesPath = firstNonEmpty(overlay.ResourcesPath, base.ResourcesPath)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.FetchConcurrency = firstNonZero(overlay.FetchConcurrency, base.FetchConcurrency)
	result.BackendTimeoutSeconds = firstNonZero(overlay.BackendTimeoutSeconds, base.BackendTimeoutSeconds)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.StrictStaleness = base.StrictStaleness || overlay.StrictStaleness

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
