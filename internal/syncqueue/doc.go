// Package syncqueue holds deferred API mutations durably until they can be
// executed against the inference service.
//
// The whole queue is persisted as one JSON snapshot record. Every mutation of
// the queue re-reads that record first, so an enqueue racing a drain cannot
// lose an update. Drain passes iterate a snapshot taken at entry; items
// enqueued mid-pass wait for the next trigger.
package syncqueue
