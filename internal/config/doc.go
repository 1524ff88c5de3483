// Package config implements configuration loading for the Camera Control Bridge.
//
// Values start from the timing baseline and built-in defaults, are
// overridden by an optional YAML or TOML file, then by CCB_* environment
// variables, and are validated last.
package config
