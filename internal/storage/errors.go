package storage

import (
	"errors"
	"fmt"
)

// Kind discriminates storage pipeline failures. Callers branch on the kind
// rather than on concrete error types.
type Kind int

const (
	KindUnknown Kind = iota
	// KindFormatNotSupported: the capture buffer is not JPEG. Never retried.
	KindFormatNotSupported
	// KindWriteFailed: I/O or catalog-insert failure, or timeout, while
	// persisting a capture.
	KindWriteFailed
	// KindSaveFailed: metadata embed failure or timeout.
	KindSaveFailed
	// KindReadFailed: metadata extract failure, malformed embedded data, or
	// timeout.
	KindReadFailed
	// KindGalleryAccess: listing failure or timeout.
	KindGalleryAccess
	// KindGalleryDelete: delete failure, including the zero-items-removed case.
	KindGalleryDelete
	// KindPublication: advisory publication failure; the stored photo
	// remains valid.
	KindPublication
)

func (k Kind) String() string {
	switch k {
	case KindFormatNotSupported:
		return "format not supported"
	case KindWriteFailed:
		return "write failed"
	case KindSaveFailed:
		return "save failed"
	case KindReadFailed:
		return "read failed"
	case KindGalleryAccess:
		return "gallery access failed"
	case KindGalleryDelete:
		return "gallery delete failed"
	case KindPublication:
		return "publication failed"
	default:
		return "unknown failure"
	}
}

// Error is the tagged failure type for the storage pipeline. The original
// cause is preserved for diagnostics and reachable through errors.Is/As.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// E builds a tagged storage error.
func E(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Errorf builds a tagged storage error with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Cause: fmt.Errorf(format, args...)}
}

// HasKind reports whether err carries the given failure kind.
func HasKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
