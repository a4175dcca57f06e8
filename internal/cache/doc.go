// Package cache implements the persistent hydration cache.
//
// One namespaced key per logical channel holds the latest accepted snapshot
// together with its write time and schema version. Any load failure (missing
// key, corrupt bytes, schema mismatch, empty snapshot) is reported as a miss
// and clears the persisted bytes, so a poisoned cache heals itself. The live
// channel stays authoritative: persistence failures are never fatal.
package cache
