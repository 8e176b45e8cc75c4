// Package config holds the verifier's ambient, non-cryptographic
// configuration: the process-wide log level and the loadable
// VerifierPolicy that scopes which policy identifiers the
// constitutional layer accepts.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel is the closed set of verbosity levels LogLevelFromEnv
// recognises.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogLevelEnvVar is the environment variable LogLevelFromEnv reads. The
// tagged loggers in this module do not consult it; they print every
// message they are given.
const LogLevelEnvVar = "NOCTHUB_LOG_LEVEL"

// LogLevelFromEnv reads NOCTHUB_LOG_LEVEL, defaulting to info for any
// unset or unrecognised value.
func LogLevelFromEnv() LogLevel {
	switch LogLevel(strings.ToLower(os.Getenv(LogLevelEnvVar))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn:
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// VerifierPolicy scopes the constitutional layer beyond the hard-coded
// constitution rules: which policy_id values a deployment trusts. It
// never overrides a constitutional constant such as the minimum signer
// count — those are fixed bit-for-bit across implementations and are
// not configuration.
type VerifierPolicy struct {
	TrustedPolicyIDs []string `yaml:"trusted_policy_ids"`
}

// IsTrustedPolicyID reports whether id is on the allowlist. An empty
// allowlist trusts every policy_id — the constitution's own rules are
// the floor, this is an optional deployment-side narrowing.
func (p VerifierPolicy) IsTrustedPolicyID(id string) bool {
	if len(p.TrustedPolicyIDs) == 0 {
		return true
	}
	for _, trusted := range p.TrustedPolicyIDs {
		if trusted == id {
			return true
		}
	}
	return false
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} with
// environment variable values, the same convention the validator
// service uses for its own YAML configuration.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadVerifierPolicy reads a YAML policy file, substituting ${VAR} and
// ${VAR:-default} references against the process environment before
// parsing.
func LoadVerifierPolicy(path string) (*VerifierPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read policy file %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var p VerifierPolicy
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("config: parse policy file %s: %w", path, err)
	}
	return &p, nil
}

