package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fenilsonani/sortdir/internal/platform"
	"github.com/fenilsonani/sortdir/internal/security"
	"github.com/fenilsonani/sortdir/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Categories          Categories                   `yaml:"categories"`
	Subfolders          map[string]map[string]string `yaml:"subfolders,omitempty"`
	OthersCategory      string                       `yaml:"others_category"`
	NoExtensionCategory string                       `yaml:"no_extension_category"`
	Duplicates          DuplicatesConfig             `yaml:"duplicates"`
	Mover               MoverConfig                  `yaml:"mover"`
	ExcludePatterns     []string                     `yaml:"exclude_patterns"`
	IncludeHidden       bool                         `yaml:"include_hidden"`
	ProtectedPaths      []string                     `yaml:"protected_paths"`
	StateDir            string                       `yaml:"state_dir,omitempty"`
	Log                 LogConfig                    `yaml:"log"`
	Schedule            ScheduleConfig               `yaml:"schedule"`
	Daemon              DaemonConfig                 `yaml:"daemon"`
}

// DuplicatesConfig controls duplicate detection during an organization pass
type DuplicatesConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Category   string `yaml:"category"`
	SampleSize string `yaml:"sample_size"` // e.g., "16KB"
	MinSize    string `yaml:"min_size"`    // smaller files are never duplicate candidates
	SampleHash string `yaml:"sample_hash"` // "sha256" or "xxhash"
	Workers    int    `yaml:"workers"`     // 0 = derive from CPU count
}

// MoverConfig controls move execution
type MoverConfig struct {
	Workers int  `yaml:"workers"` // 0 = derive from CPU count
	DryRun  bool `yaml:"dry_run"`
}

// LogConfig holds diagnostics log settings
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level"`
}

// ScheduleConfig holds the remembered scheduler target
type ScheduleConfig struct {
	Directory       string `yaml:"directory,omitempty"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	PidFile string `yaml:"pid_file,omitempty"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, configPath)
}

// Parse decodes and validates YAML configuration. Fields missing from the
// document keep their default values.
func Parse(data []byte, source string) (*Config, error) {
	config := GetDefault()
	config.Subfolders = nil

	if err := yaml.Unmarshal(data, config); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = source
			return nil, cfgErr
		}
		return nil, &ConfigurationError{Path: source, Err: err}
	}

	// Default subfolder rules only make sense for the default categories
	if config.Subfolders == nil && reflect.DeepEqual(config.Categories, DefaultCategories()) {
		config.Subfolders = DefaultSubfolders()
	}

	if err := config.Validate(); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = source
		}
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if err := ValidateFolderName(cat.Name); err != nil {
			return &ConfigurationError{Field: field, Err: err}
		}
		if seen[cat.Name] {
			return &ConfigurationError{Field: field, Err: fmt.Errorf("duplicate category %q", cat.Name)}
		}
		seen[cat.Name] = true

		for j, ext := range cat.Extensions {
			if _, err := NormalizeExtension(ext); err != nil {
				return &ConfigurationError{Field: fmt.Sprintf("categories.%s[%d]", cat.Name, j), Err: err}
			}
		}
	}

	for catName, mapping := range c.Subfolders {
		cat, ok := c.Categories.Find(catName)
		if !ok {
			return &ConfigurationError{Field: "subfolders." + catName, Err: fmt.Errorf("unknown category %q", catName)}
		}
		for ext, folder := range mapping {
			field := fmt.Sprintf("subfolders.%s.%s", catName, ext)
			norm, err := NormalizeExtension(ext)
			if err != nil {
				return &ConfigurationError{Field: field, Err: err}
			}
			if !cat.HasExtension(norm) {
				return &ConfigurationError{Field: field, Err: fmt.Errorf("extension %q is not part of category %q", norm, catName)}
			}
			if err := ValidateFolderName(folder); err != nil {
				return &ConfigurationError{Field: field, Err: err}
			}
		}
	}

	for field, name := range map[string]string{
		"others_category":       c.OthersCategory,
		"no_extension_category": c.NoExtensionCategory,
		"duplicates.category":   c.Duplicates.Category,
	} {
		if err := ValidateFolderName(name); err != nil {
			return &ConfigurationError{Field: field, Err: err}
		}
	}

	sample, err := utils.ParseSize(c.Duplicates.SampleSize)
	if err != nil {
		return &ConfigurationError{Field: "duplicates.sample_size", Err: err}
	}
	if sample <= 0 {
		return &ConfigurationError{Field: "duplicates.sample_size", Err: fmt.Errorf("must be > 0")}
	}
	if _, err := utils.ParseSize(c.Duplicates.MinSize); err != nil {
		return &ConfigurationError{Field: "duplicates.min_size", Err: err}
	}
	if _, ok := utils.NewHasher(c.Duplicates.SampleHash); !ok {
		return &ConfigurationError{Field: "duplicates.sample_hash", Err: fmt.Errorf("unsupported algorithm %q", c.Duplicates.SampleHash)}
	}
	if c.Duplicates.Workers < 0 {
		return &ConfigurationError{Field: "duplicates.workers", Err: fmt.Errorf("must be >= 0")}
	}
	if c.Mover.Workers < 0 {
		return &ConfigurationError{Field: "mover.workers", Err: fmt.Errorf("must be >= 0")}
	}

	// Validate exclude patterns (glob syntax)
	for _, pattern := range c.ExcludePatterns {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return &ConfigurationError{Field: "exclude_patterns", Err: fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)}
		}
	}

	// Validate protected paths are absolute
	for _, path := range c.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return &ConfigurationError{Field: "protected_paths", Err: fmt.Errorf("protected path must be absolute: %s", path)}
		}
	}

	if c.Schedule.IntervalMinutes < 0 {
		return &ConfigurationError{Field: "schedule.interval_minutes", Err: fmt.Errorf("must be >= 0")}
	}
	if c.Schedule.Directory != "" && !filepath.IsAbs(c.Schedule.Directory) {
		return &ConfigurationError{Field: "schedule.directory", Err: fmt.Errorf("must be absolute: %s", c.Schedule.Directory)}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ConfigurationError{Field: "log.level", Err: fmt.Errorf("unknown level %q", c.Log.Level)}
	}

	return nil
}

// SampleSizeBytes returns the parsed duplicate sample size
func (c *Config) SampleSizeBytes() int64 {
	n, err := utils.ParseSize(c.Duplicates.SampleSize)
	if err != nil || n <= 0 {
		return DefaultSampleSize
	}
	return n
}

// MinSizeBytes returns the parsed minimum duplicate candidate size
func (c *Config) MinSizeBytes() int64 {
	n, err := utils.ParseSize(c.Duplicates.MinSize)
	if err != nil {
		return 0
	}
	return n
}

// ResolveStateDir returns the directory holding the undo ledger and log
func (c *Config) ResolveStateDir() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	dir, err := platform.GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sortdir"), nil
}

// ResolveLogFile returns the diagnostics log path
func (c *Config) ResolveLogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := c.ResolveStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sortdir.log"), nil
}

// ResolvePidFile returns the daemon PID file path
func (c *Config) ResolvePidFile() (string, error) {
	if c.Daemon.PidFile != "" {
		return c.Daemon.PidFile, nil
	}
	dir, err := c.ResolveStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sortdird.pid"), nil
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "sortdir", "config.yaml"), nil
}

// EnsureConfigAt writes the default config to path unless a file is
// already there. It reports whether the file was created.
func EnsureConfigAt(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := Save(GetDefault(), path); err != nil {
		return false, err
	}
	return true, nil
}
