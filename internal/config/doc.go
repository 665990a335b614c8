// Package config loads, validates, and normalizes murmur's TOML configuration.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Inference: remote transcription/rewrite API connection settings
//   - Sync: queue drain cadence, retry ceiling, connectivity probing
//   - Storage: quota budget, note retention, diagnostic log cap
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//
// Load applies defaults first, so a missing config file yields a usable
// configuration rooted under the user's home directory.
package config
