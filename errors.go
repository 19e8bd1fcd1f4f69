// Package onion provides in-file provenance and revision control for a
// content-addressed data file.
//
// Opening a file through this package presents a logical byte-addressable
// view whose contents equal a canonical file with a chosen revision's
// deltas applied on top. A companion ".onion" file stores the append-only
// history of those deltas; writes in read-write mode accumulate into a
// new revision committed atomically on Close.
package onion

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can branch on cause
// without parsing messages.
type ErrorKind int

const (
	// KindInvalidArgument covers bad configuration, out-of-range
	// revisions and requests, and non-power-of-two page sizes.
	KindInvalidArgument ErrorKind = iota + 1
	// KindNotSupported covers rejected configurations (H5-embedded
	// store target) and an already write-locked file.
	KindNotSupported
	// KindIO covers failures from the underlying block device.
	KindIO
	// KindDecode covers signature/version/checksum mismatches,
	// index-entry addresses misaligned to the page size, and
	// inconsistent two-phase decode counts.
	KindDecode
	// KindAllocation covers failed buffer or index allocation.
	KindAllocation
	// KindInternal covers invariant violations such as a malformed merge.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotSupported:
		return "not supported"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindAllocation:
		return "allocation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this package. Every
// failure is surfaced to the caller; the engine never recovers silently.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "ingest_header"
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("onion: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("onion: %s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf reports the ErrorKind of err, unwrapping as needed. It returns
// 0 if err is nil or was not produced by this package.
func KindOf(err error) ErrorKind {
	e, ok := asOnionError(err)
	if !ok {
		return 0
	}
	return e.Kind
}

// ErrWriteLocked is returned when opening read-write against a file
// whose header WRITE_LOCK flag is already set by another writer.
var ErrWriteLocked = newErr(KindNotSupported, "open", "onion file is write-locked by another session", nil)

// ErrStoreNotSupported is returned when Config.StoreTarget requests
// the H5-embedded (same-file) storage mode, which this engine rejects.
var ErrStoreNotSupported = newErr(KindNotSupported, "open", "H5-embedded onion storage is not supported", nil)

// asOnionError reports whether err (or something it wraps) is an *Error.
func asOnionError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
