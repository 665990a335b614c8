// Package notifications delivers ntfy push notifications for background
// events the user would otherwise never see: queue items dropped after retry
// exhaustion, storage cleanup runs, and credential failures.
//
// When no ntfy topic is configured a noop implementation is returned, so
// callers never branch on whether notifications are enabled.
package notifications
