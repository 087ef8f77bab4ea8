// Package parsniperr defines the typed error taxonomy shared by every layer
// of the engine, from storage up through the MCP and CLI drivers.
package parsniperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so drivers can map it to an exit code or
// JSON-RPC error code without string-matching messages.
type Kind int

const (
	// KindUnknown is never returned by engine code; it is the zero value
	// used when wrapping an error that did not originate here.
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidInput
	KindIntegrityError
	KindStorageError
	KindSchemaTooNew
	KindMigrationFailed
	KindCancelled

	// KindNoPath is returned by shortest_path-style operations when start
	// and target both resolve but no route connects them within the
	// traversal's bounds — distinct from KindNotFound, which means one of
	// the endpoints itself doesn't exist.
	KindNoPath
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindInvalidInput:
		return "InvalidInput"
	case KindIntegrityError:
		return "IntegrityError"
	case KindStorageError:
		return "StorageError"
	case KindSchemaTooNew:
		return "SchemaTooNew"
	case KindMigrationFailed:
		return "MigrationFailed"
	case KindCancelled:
		return "Cancelled"
	case KindNoPath:
		return "NoPath"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error for op, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound, AlreadyExists, ... are kind-tagged convenience constructors for
// the usual fmt.Errorf("...: %w", err) call sites.
func NotFound(op string, err error) *Error        { return New(KindNotFound, op, err) }
func AlreadyExists(op string, err error) *Error   { return New(KindAlreadyExists, op, err) }
func InvalidInput(op string, err error) *Error    { return New(KindInvalidInput, op, err) }
func Integrity(op string, err error) *Error       { return New(KindIntegrityError, op, err) }
func Storage(op string, err error) *Error         { return New(KindStorageError, op, err) }
func SchemaTooNew(op string, err error) *Error    { return New(KindSchemaTooNew, op, err) }
func MigrationFailed(op string, err error) *Error { return New(KindMigrationFailed, op, err) }
func Cancelled(op string, err error) *Error       { return New(KindCancelled, op, err) }
func NoPath(op string, err error) *Error          { return New(KindNoPath, op, err) }

// Is reports whether err (or any error it wraps) carries kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind carried by err, or KindUnknown if err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
