package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	searchDirs []string
}

// NewLoader creates a config loader. An empty path searches the default
// locations and tolerates a missing file.
func NewLoader(configPath string) *Loader {
	l := &Loader{
		configPath: configPath,
		envPrefix:  "TRAVELMAP",
		searchDirs: []string{"."},
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		l.searchDirs = append(l.searchDirs, filepath.Join(homeDir, ".config", "travelmap"))
	}
	return l
}

// WithSearchDirs replaces the directories searched for travelmap.{json,yaml,toml}.
func (l *Loader) WithSearchDirs(dirs ...string) *Loader {
	l.searchDirs = dirs
	return l
}

// ConfigFile returns the file the last Load read, if any.
func (l *Loader) ConfigFile() string {
	return l.configPath
}

// Load reads configuration from defaults, file and environment, in
// increasing order of precedence.
func (l *Loader) Load() (*Config, error) {
	v := l.newViper()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		v.SetConfigName("travelmap")
		for _, dir := range l.searchDirs {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", v.ConfigFileUsed(), err)
			}
		} else {
			l.configPath = v.ConfigFileUsed()
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Map.Provider = strings.ToLower(cfg.Map.Provider)

	// A moved data dir drags along dependent paths still at their defaults.
	defaults := DefaultConfig().Storage
	if cfg.Storage.DataDir != defaults.DataDir {
		if cfg.Storage.SnapshotDir == defaults.SnapshotDir {
			cfg.Storage.SnapshotDir = filepath.Join(cfg.Storage.DataDir, "snapshots")
		}
		if cfg.Storage.CacheDB == defaults.CacheDB {
			cfg.Storage.CacheDB = filepath.Join(cfg.Storage.DataDir, "geocode.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	for key, value := range settingsOf(DefaultConfig()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names accepted for compatibility with existing .env files.
	_ = v.BindEnv("github.token", l.envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("github.owner", l.envPrefix+"_GITHUB_OWNER", "GITHUB_OWNER")
	_ = v.BindEnv("github.repo", l.envPrefix+"_GITHUB_REPO", "GITHUB_REPO")
	_ = v.BindEnv("github.branch", l.envPrefix+"_GITHUB_BRANCH", "GITHUB_BRANCH")
	_ = v.BindEnv("map.key", l.envPrefix+"_MAP_KEY", "AMAP_KEY")

	return v
}

// settingsOf flattens cfg into viper keys.
func settingsOf(cfg *Config) map[string]any {
	return map[string]any{
		"github.token":     cfg.GitHub.Token,
		"github.owner":     cfg.GitHub.Owner,
		"github.repo":      cfg.GitHub.Repo,
		"github.branch":    cfg.GitHub.Branch,
		"github.data_path": cfg.GitHub.DataPath,
		"github.image_dir": cfg.GitHub.ImageDir,

		"api.base_url":    cfg.API.BaseURL,
		"api.timeout":     cfg.API.Timeout.String(),
		"api.max_retries": cfg.API.MaxRetries,
		"api.user_agent":  cfg.API.UserAgent,

		"map.provider":            cfg.Map.Provider,
		"map.key":                 cfg.Map.Key,
		"map.base_url":            cfg.Map.BaseURL,
		"map.nominatim_server":    cfg.Map.NominatimServer,
		"map.plugins":             cfg.Map.Plugins,
		"map.place_types":         cfg.Map.PlaceTypes,
		"map.page_size":           cfg.Map.PageSize,
		"map.requests_per_second": cfg.Map.RequestsPerSecond,
		"map.cache_ttl":           cfg.Map.CacheTTL.String(),
		"map.verify_key":          cfg.Map.VerifyKey,
		"map.timeout":             cfg.Map.Timeout.String(),

		"storage.data_dir":     cfg.Storage.DataDir,
		"storage.snapshot_dir": cfg.Storage.SnapshotDir,
		"storage.cache_db":     cfg.Storage.CacheDB,

		"log.level":  cfg.Log.Level,
		"log.format": cfg.Log.Format,
		"log.file":   cfg.Log.File,
	}
}

// SaveExample writes cfg to path; the format follows the extension.
func SaveExample(path string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	v := viper.New()
	for key, value := range settingsOf(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return os.Chmod(path, 0600)
}
