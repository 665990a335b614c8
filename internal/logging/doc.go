// Package logging assembles structured slog loggers and formatting helpers
// used across murmur services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so service code tags log lines with
// component names, note IDs, and queue item IDs in a consistent shape. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
