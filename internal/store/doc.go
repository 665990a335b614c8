// Package store provides the durable key-value store every other murmur
// component persists through.
//
// KV is the abstract contract: string keys, opaque byte values, key listing,
// and a best-effort usage estimate. SQLite is the concrete implementation,
// holding one records table in a WAL-mode database. A missing key reads as
// (nil, nil); write failures wrap ErrWrite so callers can tell a failed
// persist apart from a not-found read.
//
// Treat this package as the single source of truth for persistence semantics;
// record names used by other packages are documented where they are defined.
package store
