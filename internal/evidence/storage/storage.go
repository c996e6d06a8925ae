// Package storage stores raw evidence bytes (document scans, selfies,
// handoff photos) and hands back opaque references. The bytes themselves
// are owned by the blob backend; the rest of the system only passes refs.
package storage

import "context"

// Ref is an opaque reference to stored bytes. Its shape is backend-specific
// and must not be parsed by callers.
type Ref string

// Store persists evidence bytes.
type Store interface {
	Store(ctx context.Context, data []byte, path string) (Ref, error)
	Fetch(ctx context.Context, ref Ref) ([]byte, error)
}
