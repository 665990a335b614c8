// Package daemon wires the murmur services together and runs the background
// loops: the connectivity watcher, the periodic queue drain, the offline note
// reconciler, and the reactive storage cleanup check.
//
// A file lock enforces a single daemon instance per data directory. The CLI
// constructs the same service graph without starting the loops, so one-shot
// commands and the daemon share code but never overlap processing.
package daemon
