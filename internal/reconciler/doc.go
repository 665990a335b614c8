// Package reconciler resumes the processing pipeline for notes that were
// recorded while offline and still lack a transcript.
//
// Pending note ids live in a durable marker set. A reconciliation pass walks
// a snapshot of that set sequentially, transcribing and enriching each note
// through the inference client. Markers outlive crashes; a marker whose note
// already carries a transcript is stale and silently dropped.
package reconciler
