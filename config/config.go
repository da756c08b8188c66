// Package config loads depscope settings from an optional YAML file
// with environment variable overrides.
package config

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/depscope/depscope/util"
)

// ArangoConfig holds the graph store connection settings.
type ArangoConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	URL  string `yaml:"url"`
}

// Config is the full service configuration.
type Config struct {
	Port           string       `yaml:"port"`
	Arango         ArangoConfig `yaml:"arango"`
	RegistryURL    string       `yaml:"registry_url"`
	HealthStoreURL string       `yaml:"health_store_url"`
	TaskQueueURL   string       `yaml:"task_queue_url"`
}

// Load reads the YAML config at path (missing file is fine) and then
// applies environment overrides, so env vars always win.
func Load(path string) Config {
	var cfg Config

	if content, err := os.ReadFile(path); err == nil {
		// A malformed file falls through to env/default values.
		_ = yaml.Unmarshal(content, &cfg)
	}

	cfg.Port = util.GetEnvDefault("MS_PORT", defaultStr(cfg.Port, "3000"))
	cfg.Arango.Host = util.GetEnvDefault("ARANGO_HOST", defaultStr(cfg.Arango.Host, "localhost"))
	cfg.Arango.Port = util.GetEnvDefault("ARANGO_PORT", defaultStr(cfg.Arango.Port, "8529"))
	cfg.Arango.User = util.GetEnvDefault("ARANGO_USER", defaultStr(cfg.Arango.User, "root"))
	cfg.Arango.Pass = util.GetEnvDefault("ARANGO_PASS", cfg.Arango.Pass)
	cfg.Arango.URL = util.GetEnvDefault("ARANGO_URL",
		defaultStr(cfg.Arango.URL, "http://"+cfg.Arango.Host+":"+cfg.Arango.Port))
	cfg.RegistryURL = util.GetEnvDefault("REGISTRY_URL", defaultStr(cfg.RegistryURL, "https://registry.npmjs.org"))
	cfg.HealthStoreURL = util.GetEnvDefault("HEALTH_STORE_URL", cfg.HealthStoreURL)
	cfg.TaskQueueURL = util.GetEnvDefault("TASK_QUEUE_URL", cfg.TaskQueueURL)

	return cfg
}

func defaultStr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
