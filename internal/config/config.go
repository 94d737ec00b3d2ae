// Package config loads the optional dispatcher configuration file from
// the data directory. Every setting has a sensible default; a missing
// file is not an error.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds user-tunable dispatcher settings.
type Config struct {
	// UpdateCheckIntervalHours overrides how often the background
	// update check runs. Zero means keep the persisted default.
	UpdateCheckIntervalHours uint `yaml:"update_check_interval_hours" toml:"update_check_interval_hours" json:"update_check_interval_hours"`
	// DisableUpdateCheck turns the background check off entirely.
	DisableUpdateCheck bool `yaml:"disable_update_check" toml:"disable_update_check" json:"disable_update_check"`
	// GitHubToken authenticates API requests. Environment variables
	// take priority over this value.
	GitHubToken string `yaml:"github_token" toml:"github_token" json:"github_token"`
	// AdvisoriesURL overrides where the advisories document is fetched
	// from. Empty means the built-in default.
	AdvisoriesURL string `yaml:"advisories_url" toml:"advisories_url" json:"advisories_url"`
}

// Default returns the zero-value configuration.
func Default() *Config {
	return &Config{}
}

// candidateNames lists the config filenames probed in order.
var candidateNames = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// Load reads the first config file found in dataDir. Absence of any
// file yields the default config; a file that exists but cannot be
// parsed is a hard error so typos are never silently ignored.
func Load(dataDir string) (*Config, error) {
	for _, name := range candidateNames {
		path := filepath.Join(dataDir, name)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return parse(path, content)
	}
	return Default(), nil
}

// Format is the detected config file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// detectFormat determines the file format from the extension, falling
// back to content sniffing.
func detectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}
	return sniffFormat(content)
}

// sniffFormat guesses the format from content shape: JSON documents
// open with a brace, TOML uses "key = value", YAML uses "key: value".
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, " = ") || strings.HasPrefix(line, "[") {
			return FormatTOML
		}
		if strings.Contains(line, ":") {
			return FormatYAML
		}
	}
	return FormatUnknown
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns so tokens
// can be referenced without writing them into the file.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

func parse(path string, content []byte) (*Config, error) {
	content = expandEnvVars(content)

	var cfg Config
	switch detectFormat(path, content) {
	case FormatYAML:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("YAML parse error in %s: %w", path, err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("TOML parse error in %s: %w", path, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("JSON parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown config format in %s", path)
	}
	return &cfg, nil
}
