package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Repository holding the travel document
	GitHub GitHubConfig `json:"github" mapstructure:"github"`

	// HTTP behaviour toward the contents API
	API APIConfig `json:"api" mapstructure:"api"`

	// Map web service and geocoding
	Map MapConfig `json:"map" mapstructure:"map"`

	// Local paths
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// GitHubConfig addresses the document store.
type GitHubConfig struct {
	Token    string `json:"token,omitempty" mapstructure:"token"`
	Owner    string `json:"owner" mapstructure:"owner"`
	Repo     string `json:"repo" mapstructure:"repo"`
	Branch   string `json:"branch" mapstructure:"branch"`
	DataPath string `json:"data_path" mapstructure:"data_path"` // Travel document path
	ImageDir string `json:"image_dir" mapstructure:"image_dir"` // Upload prefix
}

// APIConfig for server communication.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"` // 0 disables the timeout
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`
}

// MapConfig for the map adapter.
type MapConfig struct {
	Provider          string        `json:"provider" mapstructure:"provider"` // amap, nominatim
	Key               string        `json:"key,omitempty" mapstructure:"key"`
	BaseURL           string        `json:"base_url" mapstructure:"base_url"`
	NominatimServer   string        `json:"nominatim_server" mapstructure:"nominatim_server"`
	Plugins           []string      `json:"plugins" mapstructure:"plugins"`
	PlaceTypes        string        `json:"place_types" mapstructure:"place_types"`
	PageSize          int           `json:"page_size" mapstructure:"page_size"`
	RequestsPerSecond float64       `json:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"` // 0 disables the geocode cache
	VerifyKey         bool          `json:"verify_key" mapstructure:"verify_key"`
	Timeout           time.Duration `json:"timeout" mapstructure:"timeout"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir     string `json:"data_dir" mapstructure:"data_dir"`         // Base directory for all data
	SnapshotDir string `json:"snapshot_dir" mapstructure:"snapshot_dir"` // Last synced document
	CacheDB     string `json:"cache_db" mapstructure:"cache_db"`         // Geocode cache database
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stderr)
}

// Map providers.
const (
	ProviderAMap      = "amap"
	ProviderNominatim = "nominatim"
)

// PlaceholderMapKey is the value shipped in example configs.
const PlaceholderMapKey = "your_amap_key_here"

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".travelmap"

	return &Config{
		GitHub: GitHubConfig{
			Repo:     "travel-map",
			Branch:   "main",
			DataPath: "data/travels.json",
			ImageDir: "images",
		},
		API: APIConfig{
			BaseURL:    "https://api.github.com",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "travelmap/1.0",
		},
		Map: MapConfig{
			Provider:          ProviderAMap,
			BaseURL:           "https://restapi.amap.com",
			NominatimServer:   "https://nominatim.openstreetmap.org",
			Plugins:           []string{"AMap.Geocoder", "AMap.PlaceSearch"},
			PlaceTypes:        "190000", // administrative place names
			PageSize:          10,
			RequestsPerSecond: 1,
			CacheTTL:          30 * 24 * time.Hour,
			Timeout:           10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			SnapshotDir: filepath.Join(dataDir, "snapshots"),
			CacheDB:     filepath.Join(dataDir, "geocode.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must not be negative")
	}

	if c.GitHub.Repo == "" {
		return errors.New("github.repo is required")
	}

	if c.GitHub.Branch == "" {
		return errors.New("github.branch is required")
	}

	if c.GitHub.DataPath == "" {
		return errors.New("github.data_path is required")
	}

	switch c.Map.Provider {
	case ProviderAMap, ProviderNominatim:
	default:
		return fmt.Errorf("invalid map provider: %s", c.Map.Provider)
	}

	if c.Map.PageSize <= 0 {
		return errors.New("map.page_size must be positive")
	}

	if c.Map.RequestsPerSecond < 0 {
		return errors.New("map.requests_per_second must not be negative")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// HasMapKey reports whether a usable map key is configured.
func (c *MapConfig) HasMapKey() bool {
	return c.Key != "" && c.Key != PlaceholderMapKey
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.GitHub.Token != "" {
		out.GitHub.Token = "********"
	}
	if out.Map.Key != "" {
		out.Map.Key = "********"
	}
	out.Map.Plugins = append([]string(nil), c.Map.Plugins...)
	return &out
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.SnapshotDir,
	}

	if c.Storage.CacheDB != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.CacheDB))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
