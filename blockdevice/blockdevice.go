// Package blockdevice defines the inner block-device abstraction the
// onion engine reads and writes through. The engine never touches a
// file descriptor directly; every byte it moves goes through a Device,
// so the storage backend (plain files here, but potentially a remote
// store or a section of a larger container file in a host framework)
// is swappable without touching engine code. Device is the "external
// collaborator" boundary: the engine only promises a flat
// byte-addressable view, not how that view is durably stored.
package blockdevice

import "context"

// Kind distinguishes address spaces a Device may expose. The engine
// only ever asks for Raw, passed through unchanged to the backing
// implementation; it exists as a type (rather than being dropped
// entirely) so a host framework embedding this package can extend it
// with its own kinds without changing the Device signature.
type Kind int

// Raw is the only memory kind the onion engine uses.
const Raw Kind = 0

// AccessProperties carries backend-specific tuning (buffer sizes,
// retry policy, credentials) opaque to the engine. The zero value
// requests default behaviour.
type AccessProperties struct {
	// Opaque is available for backend-specific configuration that has
	// no generic representation here.
	Opaque any
}

// Flag controls how Open behaves with respect to existing content.
type Flag int

const (
	// FlagReadOnly opens an existing backing store for reading only.
	FlagReadOnly Flag = iota
	// FlagReadWrite opens an existing backing store for reading and
	// writing, creating it if absent.
	FlagReadWrite
	// FlagCreateTruncate creates a new, empty backing store,
	// overwriting any existing content.
	FlagCreateTruncate
)

// Handle is an opaque reference to an open backing store.
type Handle interface {
	// Close releases the handle. Calling Close more than once must be
	// safe and return nil on subsequent calls.
	Close(ctx context.Context) error
}

// Device is the inner block-device abstraction the engine is built
// against. Implementations need not be thread-safe beyond what the
// engine itself already serializes: single writer, single reader at a
// time.
type Device interface {
	// Open opens path according to flag. maxAddr is an advisory upper
	// bound on the address space the caller expects to use; backends
	// that must pre-allocate may use it, others may ignore it.
	Open(ctx context.Context, path string, flag Flag, props AccessProperties, maxAddr uint64) (Handle, error)

	// Close releases h. Equivalent to calling h.Close directly; exists
	// so callers can route through the Device uniformly.
	Close(ctx context.Context, h Handle) error

	// Read fills out with len(out) bytes read from h starting at offset.
	Read(ctx context.Context, h Handle, kind Kind, props AccessProperties, offset uint64, out []byte) error

	// Write writes in to h starting at offset.
	Write(ctx context.Context, h Handle, kind Kind, props AccessProperties, offset uint64, in []byte) error

	// GetEOA returns the current end-of-address: the highest address
	// the caller has reserved via SetEOA, regardless of how much of
	// that range has actually been written.
	GetEOA(ctx context.Context, h Handle, kind Kind) (uint64, error)

	// SetEOA reserves addresses up to addr. Subsequent reads/writes
	// below addr are permitted even if never explicitly written.
	SetEOA(ctx context.Context, h Handle, kind Kind, addr uint64) error

	// GetEOF returns the end-of-file: the actual extent of durable
	// storage backing h, which may lag SetEOA until a Write or explicit
	// flush extends it.
	GetEOF(ctx context.Context, h Handle, kind Kind) (uint64, error)
}
