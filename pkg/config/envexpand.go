package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's standard library.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Examples:
//   - ${ANTHROPIC_API_KEY} → value of ANTHROPIC_API_KEY environment variable
//   - $APP_PACKAGE → value of APP_PACKAGE environment variable
//   - ${DEVICE_SERVER_URL} → automation endpoint URL with the variable expanded
//
// Missing variables expand to empty string. Validation should catch required fields that are empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
