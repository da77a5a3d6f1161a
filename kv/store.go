/*
Package kv defines the key/value persistence boundary.

PURPOSE:
  Every durable byte in the system flows through this interface. The engine
  treats storage as an external collaborator: it namespaces its own keys and
  performs all (de)serialization itself, so a backend only needs three
  operations. This keeps the atomicity discipline enforceable in one place
  instead of scattering parse/stringify logic across call sites.

IMPLEMENTATIONS:
  - kv.Memory:    in-process map, for tests and demo mode
  - kv/sqlite:    durable single-file store
  - kv/redis:     shared store for multi-process demos
*/
package kv

import "context"

// Store is a minimal durable key/value store.
//
// Get returns (value, true, nil) when the key exists and ("", false, nil)
// when it does not; the error return is reserved for backend failures
// (I/O, quota, connectivity).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
