// Package connectivity tracks whether the inference API is reachable.
//
// A watcher probes the configured endpoint on an interval and publishes
// online/offline transitions to subscribers. Any HTTP response counts as
// reachable; only transport-level failures mark the link offline, since an
// API that answers with an error status is still an API we can talk to.
package connectivity
