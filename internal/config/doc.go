// Package config provides configuration for pageaudit.
//
// Values are layered: built-in defaults, then the YAML config file, then
// .env and PAGEAUDIT_* environment variables, then command line flags.
package config
