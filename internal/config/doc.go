// Package config loads, validates, and normalizes tonguelab's TOML
// configuration.
//
// The configuration covers data and output locations, import behavior,
// audio preprocessing, timestamp comparison tolerance, and the default
// derivation parameters the pipeline runs with. Values that the data
// model needs (epsilon, mains frequency) are carried here and passed
// into constructors explicitly; nothing reads configuration through
// package-level state.
package config
