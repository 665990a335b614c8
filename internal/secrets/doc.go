// Package secrets stores the remote API credential encrypted at rest.
//
// The credential is sealed with AES-256-GCM under a locally generated 32-byte
// key persisted beside the ciphertext in the durable store. Retrieve never
// surfaces decryption faults: corrupt ciphertext or missing key material is
// logged, the unusable ciphertext record is purged, and the caller sees a
// clean "not configured" result. Clear removes only the ciphertext; the
// symmetric key is retained so a later Store reuses it (the key is useless
// without matching ciphertext, and regeneration buys nothing).
package secrets
