// Package config handles myhealthd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/myhealthd/config.yaml, /etc/myhealthd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "myhealthd", "config.yaml"))
	}

	paths = append(paths, "/etc/myhealthd/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all myhealthd configuration.
type Config struct {
	Environment string        `yaml:"environment"` // development or production
	Listen      ListenConfig  `yaml:"listen"`
	Bedrock     BedrockConfig `yaml:"bedrock"`
	USDA        USDAConfig    `yaml:"usda"`
	DataDir     string        `yaml:"data_dir"`
	LogLevel    string        `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// BedrockConfig defines AWS Bedrock settings. Credentials come from the
// standard AWS credential chain (env vars, shared config, instance role).
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// USDAConfig defines USDA FoodData Central API settings.
type USDAConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Override for testing; default is the public API.
}

// IsProduction reports whether the server runs in the production environment.
// Anything other than "production" is treated as non-production, which gates
// debug-trace inclusion in agent responses.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "myhealth.db")
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		Listen:      ListenConfig{Port: 8000},
		Bedrock: BedrockConfig{
			Region:  "us-east-1",
			ModelID: "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		},
	}
}
