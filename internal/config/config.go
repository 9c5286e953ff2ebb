package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBuildTimeout bounds a single sbt assembly run
const DefaultBuildTimeout = 45 * time.Minute

// Config holds the persisted user configuration
type Config struct {
	Python       string       `json:"python"`        // Interpreter used to detect PySpark
	JarsDir      string       `json:"jars_dir"`      // Bundle directory holding the uber-JARs
	SDKDir       string       `json:"sdk_dir"`       // Scala SDK checkout used by build
	BuildTimeout Duration     `json:"build_timeout"` // Upper bound for one sbt run
	UpdateConfig UpdateConfig `json:"update_config"` // Auto-update configuration
	configPath   string
}

// UpdateConfig holds settings for auto-update feature
type UpdateConfig struct {
	Enabled     bool      `json:"enabled"`      // Master toggle for update functionality
	AutoCheck   bool      `json:"auto_check"`   // Check for updates on startup
	Repository  string    `json:"repository"`   // GitHub owner/name hosting releases, updates are off when empty
	LastCheck   time.Time `json:"last_check"`   // Last time update check was performed
	SkipVersion string    `json:"skip_version"` // Version user chose to skip
}

// Duration is a time.Duration stored as a string such as "45m"
type Duration time.Duration

// MarshalJSON encodes the duration in time.Duration string form
func (d Duration) MarshalJSON() ([]byte, error) {
	if d == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "45m" style strings or integer seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// Load loads the configuration from the user's config directory
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads the configuration from an explicit file
func LoadFrom(configPath string) (*Config, error) {
	cfg := &Config{
		UpdateConfig: UpdateConfig{
			Enabled:   true,
			AutoCheck: true,
		},
		configPath: configPath,
	}

	// If config file doesn't exist, return defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Remove BOM if present (UTF-8 BOM is EF BB BF)
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	cfg.Python = strings.TrimSpace(cfg.Python)
	cfg.JarsDir = cleanPath(cfg.JarsDir)
	cfg.SDKDir = cleanPath(cfg.SDKDir)
	cfg.UpdateConfig.Repository = strings.TrimSpace(cfg.UpdateConfig.Repository)

	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// ConfigPath returns the file the configuration is read from and saved to
func (c *Config) ConfigPath() string {
	return c.configPath
}

// Timeout returns the configured build timeout or the default
func (c *Config) Timeout() time.Duration {
	if c.BuildTimeout <= 0 {
		return DefaultBuildTimeout
	}
	return time.Duration(c.BuildTimeout)
}

// Path returns the path to the configuration file
// Following XDG Base Directory specification
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome != "" {
		return filepath.Join(configHome, "fsjar", "fsjar.json")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return filepath.Join(homeDir, ".config", "fsjar", "fsjar.json")
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
