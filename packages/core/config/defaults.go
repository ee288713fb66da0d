package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            30000, // 30 seconds
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       10,
		Output:             "console",
		Concurrency:        100,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.DefaultEnvironment == defaults.DefaultEnvironment &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.Proxy == defaults.Proxy &&
		c.Root == defaults.Root &&
		c.GetStatusErrors() == defaults.GetStatusErrors() &&
		c.Output == defaults.Output &&
		c.Concurrency == defaults.Concurrency &&
		len(c.Variables) == 0 &&
		len(c.Environments) == 0 &&
		len(c.StressProfiles) == 0 &&
		c.GetDebug() == defaults.GetDebug() &&
		c.GetNoColor() == defaults.GetNoColor()
}
