// Package config loads and validates the global bounty-crawl configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lessuselesss/bounty-crawl/internal/common"
)

// GlobalConfig contains all configuration sections for the application.
type GlobalConfig struct {
	Mode               string             `json:"mode,omitempty" yaml:"mode,omitempty" validate:"required,mode"`
	LogConfig          LogConfig          `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	ResourcesConfig    ResourcesConfig    `json:"resources_config,omitempty" yaml:"resources_config,omitempty"`
	FetcherConfig      FetcherConfig      `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	OrchestratorConfig OrchestratorConfig `json:"orchestrator_config,omitempty" yaml:"orchestrator_config,omitempty"`
	ExtractorConfig    ExtractorConfig    `json:"extractor_config,omitempty" yaml:"extractor_config,omitempty"`
	DiffConfig         DiffConfig         `json:"diff_config,omitempty" yaml:"diff_config,omitempty"`
	CoalescerConfig    CoalescerConfig    `json:"coalescer_config,omitempty" yaml:"coalescer_config,omitempty"`
	SchedulerConfig    SchedulerConfig    `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	ProberConfig       ProberConfig       `json:"prober_config,omitempty" yaml:"prober_config,omitempty"`
	StorageConfig      StorageConfig      `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	NotificationConfig NotificationConfig `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	SignalConfig       SignalConfig       `json:"signal_config,omitempty" yaml:"signal_config,omitempty"`
	LimiterConfig      LimiterConfig      `json:"limiter_config,omitempty" yaml:"limiter_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Mode:               "onetime",
		LogConfig:          NewDefaultLogConfig(),
		ResourcesConfig:    NewDefaultResourcesConfig(),
		FetcherConfig:      NewDefaultFetcherConfig(),
		OrchestratorConfig: NewDefaultOrchestratorConfig(),
		ExtractorConfig:    NewDefaultExtractorConfig(),
		DiffConfig:         NewDefaultDiffConfig(),
		CoalescerConfig:    NewDefaultCoalescerConfig(),
		SchedulerConfig:    NewDefaultSchedulerConfig(),
		ProberConfig:       NewDefaultProberConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		SignalConfig:       NewDefaultSignalConfig(),
		LimiterConfig:      NewDefaultLimiterConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// Both YAML and JSON formats are supported; the extension decides the parser.
// A missing path is not an error: defaults are returned so the tool can run
// with flags alone.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, common.WrapError(err, "failed to read config file")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, common.WrapError(err, "failed to parse config content")
	}

	return cfg, nil
}

// GetConfigPath determines the configuration file path.
// Priority: explicit flag value, BOUNTYCRAWL_CONFIG_PATH env var, config.yaml
// or config.json in the working directory, then next to the executable.
func GetConfigPath(configFilePathFlag string) string {
	if configFilePathFlag != "" {
		if _, err := os.Stat(configFilePathFlag); err == nil {
			return configFilePathFlag
		}
	}

	if envPath := os.Getenv("BOUNTYCRAWL_CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	var locations []string
	if cwd, err := os.Getwd(); err == nil {
		locations = append(locations, cwd)
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		if len(locations) == 0 || locations[0] != exeDir {
			locations = append(locations, exeDir)
		}
	}

	for _, loc := range locations {
		for _, file := range []string{"config.yaml", "config.json"} {
			path := filepath.Join(loc, file)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return common.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}
