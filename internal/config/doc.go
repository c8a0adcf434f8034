// Package config provides the configuration for linkwalk: crawl tuning,
// transport timeouts, per-site credentials loaded from YAML, and output
// preferences.
package config
