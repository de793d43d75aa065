// Package file provides file-based implementations of driven port interfaces.
//
// ConfigStore keeps the application configuration in a TOML file, decodes it
// over the built-in defaults, and can watch the file for hot reloads.
package file
