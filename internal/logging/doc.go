// Package logging assembles the structured slog loggers used across
// tonguelab.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes small attribute helpers so importers, metric
// derivations, and the pipeline driver emit log lines with the same
// shape. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
