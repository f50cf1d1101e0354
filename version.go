// Package cargobuilder holds shared metadata for the cargo-builder tool.
package cargobuilder

// Version is the cargo-builder release version.
const Version = "0.1.0"
