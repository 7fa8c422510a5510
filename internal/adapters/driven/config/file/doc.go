// Package file resolves the exporter configuration from a TOML file and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the config file, then the
// PRISMA_* environment variables. Command-line flags are applied on top by the
// CLI layer. The config file is optional unless a path was given explicitly.
package file
