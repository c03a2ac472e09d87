package config

// Environment represents the current runtime environment
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// ParseEnvironment maps the ENV value to an Environment, defaulting to development
func ParseEnvironment(env string) Environment {
	switch Environment(env) {
	case Production, Test, CI, Development:
		return Environment(env)
	default:
		return Development
	}
}

// IsProduction returns true if the config targets production
func (c *Config) IsProduction() bool {
	return c.Environment() == Production
}

// IsTest returns true for the test and CI environments
func (c *Config) IsTest() bool {
	env := c.Environment()
	return env == Test || env == CI
}
