// Package errs classifies meshcore's error conditions into the five kinds
// the core distinguishes: argument, capacity, name, anonymous, and
// transport. Each kind carries its own sentinel so callers can classify
// with errors.Is, and also wraps the nearest containerd/errdefs sentinel
// so generic embedder code written against errdefs's IsXxx predicates
// (the same pattern used elsewhere in the retrieved pack) still works.
package errs

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Kind identifies which of the five error categories an error belongs to.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors meshcore did not produce.
	KindUnknown Kind = iota
	// KindArgument marks a null or malformed input.
	KindArgument
	// KindCapacity marks an exhausted local table (topic count, transfer-id space).
	KindCapacity
	// KindName marks a non-unique or invalid canonical topic name.
	KindName
	// KindAnonymous marks an operation that requires a node-ID the node doesn't have.
	KindAnonymous
	// KindTransport marks an error forwarded from an embedder transport hook.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindCapacity:
		return "capacity"
	case KindName:
		return "name"
	case KindAnonymous:
		return "anonymous"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind, distinct from the underlying errdefs
// sentinel so KindOf can classify unambiguously even though multiple
// kinds wrap the same errdefs category (argument and name-invalid both
// wrap errdefs.ErrInvalidArgument).
var (
	errArgument  = errors.New("argument")
	errCapacity  = errors.New("capacity")
	errName      = errors.New("name")
	errAnonymous = errors.New("anonymous")
	errTransport = errors.New("transport")
)

// Argument reports a null or malformed input.
func Argument(format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), errArgument, errdefs.ErrInvalidArgument)
}

// Capacity reports an exhausted local table (topic count, transfer-id space).
func Capacity(format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), errCapacity, errdefs.ErrResourceExhausted)
}

// Name reports a non-unique canonical topic name.
func Name(format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), errName, errdefs.ErrAlreadyExists)
}

// InvalidName reports a malformed canonical name (e.g. over the length limit).
func InvalidName(format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), errName, errdefs.ErrInvalidArgument)
}

// Anonymous reports that an operation requires a node-ID the node doesn't have.
func Anonymous(format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), errAnonymous, errdefs.ErrFailedPrecondition)
}

// Transport wraps an error forwarded from an embedder transport hook.
func Transport(cause error, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w: %w", fmt.Sprintf(format, args...), errTransport, errdefs.ErrUnavailable, cause)
}

// KindOf classifies err into one of the five kinds, or KindUnknown if it
// matches none of them.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, errArgument):
		return KindArgument
	case errors.Is(err, errCapacity):
		return KindCapacity
	case errors.Is(err, errName):
		return KindName
	case errors.Is(err, errAnonymous):
		return KindAnonymous
	case errors.Is(err, errTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}
