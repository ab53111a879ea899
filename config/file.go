package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvConfig     = "NEWSARCHIVE_CONFIG"
	EnvIndexDSN   = "NEWSARCHIVE_INDEX_DSN"
	EnvArchiveDir = "NEWSARCHIVE_ARCHIVE_DIR"
	EnvLogLevel   = "NEWSARCHIVE_LOG_LEVEL"
)

// DefaultConfigPath returns ~/.newsarchive/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".newsarchive", "config.yaml"), nil
}

// Load builds the configuration from defaults, the config file and the
// environment, in rising precedence. An empty path means NEWSARCHIVE_CONFIG
// or else the default path; a missing default file is not an error, but a
// missing file that was asked for is. Load does not validate.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	err := LoadConfigFile(path, cfg)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		err = nil
	}
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if cfg.Storage.IndexDSN, err = ExpandHome(cfg.Storage.IndexDSN); err != nil {
		return nil, err
	}
	if cfg.Storage.ArchiveDir, err = ExpandHome(cfg.Storage.ArchiveDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigFile parses the YAML file at path over cfg. Keys the file leaves
// out keep their value in cfg.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvIndexDSN); v != "" {
		c.Storage.IndexDSN = v
	}
	if v := os.Getenv(EnvArchiveDir); v != "" {
		c.Storage.ArchiveDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
