// Package quota watches store consumption against the configured budget and
// reclaims space through a fixed-order eviction cascade when thresholds trip.
//
// Cleanup is reactive only: it runs when a write fails or a pre-write check
// recommends it, never on a timer, so nothing is deleted under normal usage.
package quota
