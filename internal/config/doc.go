// Package config loads build configuration from an optional YAML file with
// environment variable overrides. Precedence, lowest to highest: defaults,
// file, environment.
package config
