package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/flowdeck/core/errors"
)

// ConfigFileName is the project configuration file searched for by LoadDefault.
const ConfigFileName = "flowdeck.yml"

// LoadDefault loads flowdeck.yml, searching the current directory and its
// parents, then ~/.config/flowdeck/. Defaults are applied to the result.
func LoadDefault() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load reads and parses the configuration file at path. Files ending in
// .toml are parsed as TOML; everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if strings.HasSuffix(path, ".toml") {
		return LoadFromTOML(data)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML configuration content.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromTOML parses TOML configuration content.
func LoadFromTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.ConfigInvalid("backend.base_url is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return errors.ConfigInvalid(fmt.Sprintf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL))
	}
	return nil
}

// FindConfigFile walks from the current directory up to the filesystem root
// looking for flowdeck.yml, then falls back to ~/.config/flowdeck/flowdeck.yml.
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "flowdeck", ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.ConfigNotFound(ConfigFileName)
}
