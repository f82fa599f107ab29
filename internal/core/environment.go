package core

import "strings"

// Environment selects the runtime profile of the service. It mainly drives
// logging verbosity and output format.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the service runs with production settings.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps a raw value, case-insensitively, onto a known
// environment. Anything unrecognised runs as Development so a missing or
// mistyped ENVIRONMENT variable never blocks local startup.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Testing:
		return Testing
	default:
		return Development
	}
}
