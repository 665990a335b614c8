// Package notes persists voice notes and their audio blobs in the durable
// key-value store.
//
// Each note lives under "note:<id>" as JSON; its recorded audio lives under
// "audio:<id>" as raw bytes. The sync queue, reconciler, and quota governor
// all consume this store but never bypass it to touch records directly,
// except for the governor's orphan-blob sweep which works from raw keys.
package notes
