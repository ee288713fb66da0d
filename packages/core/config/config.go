package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. HITLAMBDA_TIMEOUT.
const EnvPrefix = "HITLAMBDA"

// Config represents the hitlambda configuration
type Config struct {
	DefaultEnvironment string                    `json:"defaultEnvironment,omitempty"`
	Timeout            int                       `json:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool                     `json:"followRedirects,omitempty"`
	MaxRedirects       int                       `json:"maxRedirects,omitempty"`
	Proxy              string                    `json:"proxy,omitempty"`
	Root               string                    `json:"root,omitempty"` // folder [filename] arguments resolve against
	StatusErrors       *bool                     `json:"statusErrors,omitempty"`
	Output             string                    `json:"output,omitempty"` // console, json, yaml or hyperlambda
	Concurrency        int                       `json:"concurrency,omitempty"` // max concurrent stress invocations
	Variables          map[string]any            `json:"variables,omitempty"`
	Environments       map[string]map[string]any `json:"environments,omitempty"`
	Debug              *bool                     `json:"debug,omitempty"`
	NoColor            *bool                     `json:"noColor,omitempty"`
	StressProfiles     map[string]StressProfile  `json:"stressProfiles,omitempty"`
}

// StressProfile is a named set of stress settings, selected with
// `hitlambda stress --profile <name>`. Durations use time.ParseDuration syntax.
type StressProfile struct {
	Duration   string            `json:"duration,omitempty"`
	Rate       float64           `json:"rate,omitempty"`
	VUs        int               `json:"vus,omitempty"`
	MaxVUs     int               `json:"maxVUs,omitempty"`
	ThinkTime  string            `json:"thinkTime,omitempty"`
	RampUp     string            `json:"rampUp,omitempty"`
	Thresholds map[string]string `json:"thresholds,omitempty"`
}

// envOverrides are the settings that can come from HITLAMBDA_* variables.
// Unset pointers leave the file configuration alone.
type envOverrides struct {
	Environment  string        `envconfig:"ENV"`
	Timeout      time.Duration `envconfig:"TIMEOUT"`
	Proxy        string        `envconfig:"PROXY"`
	Root         string        `envconfig:"ROOT"`
	StatusErrors *bool         `envconfig:"STATUS_ERRORS"`
	Output       string        `envconfig:"OUTPUT"`
	Concurrency  int           `envconfig:"CONCURRENCY"`
	Debug        *bool         `envconfig:"DEBUG"`
	NoColor      *bool         `envconfig:"NO_COLOR"`
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetStatusErrors returns whether 4xx/5xx responses fail, defaulting to false
func (c *Config) GetStatusErrors() bool {
	return getBool(c.StatusErrors, false)
}

func (c *Config) GetDebug() bool {
	return getBool(c.Debug, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns the request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitlambda.json",
	"hitlambda.config.json",
}

// Load reads the config file at path, or the first config file found in the
// working directory, and applies HITLAMBDA_* environment overrides.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = loadConfigFromFile(path)
	} else {
		cfg, err = FindAndLoadConfig(".")
	}
	if err != nil {
		return nil, err
	}
	return cfg.ApplyEnv()
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return config, nil
}

// ApplyEnv returns a copy of c with HITLAMBDA_* environment variables applied.
func (c *Config) ApplyEnv() (*Config, error) {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}

	return c.Merge(&Config{
		DefaultEnvironment: o.Environment,
		Timeout:            int(o.Timeout / time.Millisecond),
		Proxy:              o.Proxy,
		Root:               o.Root,
		StatusErrors:       o.StatusErrors,
		Output:             o.Output,
		Concurrency:        o.Concurrency,
		Debug:              o.Debug,
		NoColor:            o.NoColor,
	}), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Root != "" {
		result.Root = other.Root
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.StatusErrors != nil {
		result.StatusErrors = other.StatusErrors
	}
	if other.Debug != nil {
		result.Debug = other.Debug
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Variables) > 0 {
		merged := make(map[string]any, len(result.Variables)+len(other.Variables))
		for k, v := range result.Variables {
			merged[k] = v
		}
		for k, v := range other.Variables {
			merged[k] = v
		}
		result.Variables = merged
	}

	if len(other.Environments) > 0 {
		merged := make(map[string]map[string]any, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			merged[k] = v
		}
		for k, v := range other.Environments {
			merged[k] = v
		}
		result.Environments = merged
	}

	if len(other.StressProfiles) > 0 {
		merged := make(map[string]StressProfile, len(result.StressProfiles)+len(other.StressProfiles))
		for k, v := range result.StressProfiles {
			merged[k] = v
		}
		for k, v := range other.StressProfiles {
			merged[k] = v
		}
		result.StressProfiles = merged
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
