package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: YAML is a superset of JSON, so JSON configuration files of the form
// {"entries": [{"input": ..., "output": ..., "remove_files": true}]} load
// unchanged.

// Entry describes one conversion job: contacts in, reminder files out.
type Entry struct {
	// Input is a directory of .vcf files or an http(s) URL of a vCard file.
	Input string `yaml:"input" json:"input"`
	// Output is the directory the .ics files are written to.
	Output string `yaml:"output" json:"output"`
	// RemoveFiles purges every .ics file in Output before regenerating.
	RemoveFiles bool `yaml:"remove_files" json:"remove_files"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Entries []Entry `yaml:"entries" json:"entries"`

	// YearsBefore / YearsAfter select the target years relative to the
	// current year: current-YearsBefore .. current+YearsAfter.
	YearsBefore int `yaml:"years_before" json:"years_before"`
	YearsAfter  int `yaml:"years_after" json:"years_after"`

	// Strict makes the first failing contact or file abort its entry.
	// Otherwise failures are logged and skipped.
	Strict bool `yaml:"strict" json:"strict"`

	// RefreshCron is the cron schedule used in watch mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the HTTP listen address used in watch mode. Empty disables
	// the HTTP server.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores remote vCard bodies and their HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Timezone is the IANA timezone for upcoming-birthday reports. Empty
	// means the local timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// UpcomingDays is the default report window.
	UpcomingDays int `yaml:"upcoming_days" json:"upcoming_days"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultYearsBefore  = 1
	defaultYearsAfter   = 2
	defaultRefreshCron  = "0 3 * * *"
	defaultLogLevel     = "info"
	defaultCacheDir     = "./var/vcf-cache"
	defaultUpcomingDays = 30
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Entries:      []Entry{},
		YearsBefore:  defaultYearsBefore,
		YearsAfter:   defaultYearsAfter,
		RefreshCron:  defaultRefreshCron,
		LogLevel:     defaultLogLevel,
		CacheDir:     defaultCacheDir,
		UpcomingDays: defaultUpcomingDays,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
//
// A zero YearsBefore/YearsAfter is a valid choice and is kept; only
// negative values are reset.
func (c *Config) Normalize() {
	if c.Entries == nil {
		c.Entries = []Entry{}
	}
	if c.YearsBefore < 0 {
		c.YearsBefore = defaultYearsBefore
	}
	if c.YearsAfter < 0 {
		c.YearsAfter = defaultYearsAfter
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.UpcomingDays <= 0 {
		c.UpcomingDays = defaultUpcomingDays
	}
}

// Validate checks the fields Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	for i, e := range c.Entries {
		if e.Input == "" {
			errs = append(errs, fmt.Errorf("entries[%d]: input is empty", i))
		}
		if e.Output == "" {
			errs = append(errs, fmt.Errorf("entries[%d]: output is empty", i))
		}
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone. An empty Timezone is the local timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".event-extractor-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
