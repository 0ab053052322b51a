package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the YAML-file configuration for the HTTP server and the
// batch defaults. Env-only settings (credentials, endpoints) live in the
// other config files.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Batch struct {
		MaxConcurrent int  `yaml:"maxConcurrent"`
		MaxBatchSize  int  `yaml:"maxBatchSize"`
		MaxPages      int  `yaml:"maxPages"`
		AutoUpdate    bool `yaml:"autoUpdate"`
	} `yaml:"batch"`
	Logging struct {
		Level       string   `yaml:"level"`
		Encoding    string   `yaml:"encoding"`
		OutputPaths []string `yaml:"outputPaths"`
	} `yaml:"logging"`
	Worker struct {
		Concurrency int            `yaml:"concurrency"`
		Queues      map[string]int `yaml:"queues"`
	} `yaml:"worker"`
}

// DefaultServerConfig returns the config used when no file is present.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{Addr: ":8080"}
	cfg.Batch.MaxConcurrent = 3
	cfg.Batch.MaxBatchSize = 50
	cfg.Batch.MaxPages = 5
	cfg.Batch.AutoUpdate = true
	cfg.Logging.Level = "info"
	cfg.Logging.Encoding = "json"
	cfg.Logging.OutputPaths = []string{"stdout", "logs/app.log"}
	cfg.Worker.Concurrency = 10
	cfg.Worker.Queues = map[string]int{"critical": 6, "default": 3, "low": 1}
	return cfg
}

// LoadServerConfig reads a YAML config file over the defaults. A missing
// file is not an error; a malformed one is.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
