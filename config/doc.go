// Package config loads and validates the bridge service configuration.
//
// Configuration is YAML, layered over built-in defaults so a partial file
// only needs to name what it changes. Validation runs at load time and
// classifies problems as invalid configuration, so a misconfigured service
// fails fast at startup rather than at first use.
package config
