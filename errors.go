package tagpull

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures. NotFound is deliberately absent: it is a
// Resolution status, not an error.
type Kind uint8

const (
	// KindUnknown is used for errors not produced by this module.
	KindUnknown Kind = iota
	// KindUsage is a caller mistake (empty prefix, installing a not-found release).
	KindUsage
	// KindNetwork means a request could not be completed (DNS, connect, timeout).
	KindNetwork
	// KindRemote means a request completed with a non-2xx status.
	KindRemote
	// KindMalformed means the tag listing or a version suffix could not be interpreted.
	KindMalformed
	// KindCorruptArchive means the archive failed the signature check or mid-extraction.
	KindCorruptArchive
	// KindFilesystem means the destination could not be created or written.
	KindFilesystem
)

// Sentinel errors, one per Kind. Callers should use errors.Is to check.
var (
	ErrUsage          = errors.New("tagpull: invalid usage")
	ErrNetwork        = errors.New("tagpull: network failure")
	ErrRemote         = errors.New("tagpull: unexpected remote status")
	ErrMalformed      = errors.New("tagpull: malformed data")
	ErrCorruptArchive = errors.New("tagpull: corrupt archive")
	ErrFilesystem     = errors.New("tagpull: filesystem failure")
)

// String returns a stable textual representation for Kind.
func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindNetwork:
		return "network"
	case KindRemote:
		return "remote"
	case KindMalformed:
		return "malformed"
	case KindCorruptArchive:
		return "corrupt-archive"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUsage:
		return ErrUsage
	case KindNetwork:
		return ErrNetwork
	case KindRemote:
		return ErrRemote
	case KindMalformed:
		return ErrMalformed
	case KindCorruptArchive:
		return ErrCorruptArchive
	case KindFilesystem:
		return ErrFilesystem
	default:
		return nil
	}
}

// Error is the typed failure returned by every tagpull package.
// Use errors.Is(err, ErrRemote) or errors.As(err, &e) to inspect.
type Error struct {
	// Err is the underlying cause, may be nil.
	Err error

	// Op names the failed step, e.g. "list tags", "download", "extract".
	Op string

	// Target is the URL or path the step was working on.
	Target string

	// Detail is extra human-readable context (rate-limit hints, entry names).
	Detail string

	// Status is the HTTP status for KindRemote, zero otherwise.
	Status int

	Kind Kind
}

// Errorf builds an *Error of the given kind with a formatted detail.
func Errorf(kind Kind, op, target, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind Kind, op, target string, err error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("tagpull: ")
	if e.Op != "" {
		b.WriteString(e.Op)
	} else {
		b.WriteString(e.Kind.String())
	}

	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}

	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap returns the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ExitCode maps the kind to a process exit code.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindUsage:
		return 2
	case KindNetwork:
		return 3
	case KindRemote:
		return 4
	case KindMalformed:
		return 5
	case KindCorruptArchive:
		return 6
	case KindFilesystem:
		return 7
	default:
		return 1
	}
}

// Compile-time check that Error implements error.
var _ error = (*Error)(nil)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}
