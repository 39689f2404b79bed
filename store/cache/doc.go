// Package cache implements the process-local cache that fronts product and user
// data.
//
// A Cache holds at most Config.MaxItems entries, each with its own expiration.
// When full, the EvictionPolicy (FIFO unless configured otherwise) picks the entry
// to displace. Keys follow the {domain}:{scopeId}:{resource} grammar produced by
// UserKey and ProductKey so that InvalidateUser and InvalidateProducts can drop
// related entries after the source of truth changes.
//
// The cache is not shared between processes. Create one per process with New and
// pass it to the code that needs it.
package cache
