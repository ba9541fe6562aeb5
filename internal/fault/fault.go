package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a user-facing outcome.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers invalid user input (symbols, dates, flags).
	KindValidation
	// KindPolicy is a disallowed (source, use-case) combination.
	KindPolicy
	// KindFetch means the primary price data could not be obtained.
	KindFetch
	// KindMergePrecondition means a price table has no locatable date key.
	KindMergePrecondition
	// KindOutput covers file writes, uploads and persistence.
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindPolicy:
		return "PolicyError"
	case KindFetch:
		return "DownloadError"
	case KindMergePrecondition:
		return "MergeError"
	case KindOutput:
		return "OutputError"
	default:
		return "UnexpectedError"
	}
}

// Error is a classified error. Op names the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error from a formatted message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status used by the CLI.
//
//	0 success, 1 unexpected, 2 validation, 3 fetch, 4 output, 5 policy
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindValidation:
		return 2
	case KindFetch:
		return 3
	case KindOutput:
		return 4
	case KindPolicy:
		return 5
	default:
		return 1
	}
}
