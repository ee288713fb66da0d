// Package config handles configuration loading and management for hitlambda.
//
// It provides functionality for:
//   - Loading configuration from .hitlambda.json or hitlambda.config.json
//   - Default configuration values
//   - HITLAMBDA_* environment overrides
//   - Named environments holding reference variables
package config
