// Package config loads the proofflowd configuration file. JSON and YAML are
// both accepted and selected by file extension; relative paths are resolved
// against the directory holding the file.
package config
