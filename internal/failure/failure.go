// Package failure defines the closed error taxonomy shared by every pdftoolkit
// component, and the mapping from a classified error to a process exit code.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the category reported to callers as the prefix of an error line.
type Kind int

const (
	// Unclassified is the zero Kind. It is never constructed on purpose; it marks
	// errors that escaped classification.
	Unclassified Kind = iota
	InvalidArgument
	FileProcessing
	PageRange
	IO
	DecryptionFailed
	Unexpected
)

var kindNames = map[Kind]string{
	Unclassified:     "UNEXPECTED_ERROR",
	InvalidArgument:  "INVALID_ARGUMENT",
	FileProcessing:   "FILE_PROCESSING_ERROR",
	PageRange:        "PAGE_RANGE_ERROR",
	IO:               "IO_ERROR",
	DecryptionFailed: "DECRYPTION_FAILED",
	Unexpected:       "UNEXPECTED_ERROR",
}

// String returns the wire name of the kind, e.g. "PAGE_RANGE_ERROR".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unclassified]
}

// Reason refines how a Kind maps to an exit code without widening the taxonomy.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonNotFound marks a missing input file.
	ReasonNotFound
	// ReasonUnreadable marks a document that could not be read or parsed.
	ReasonUnreadable
	// ReasonInternal marks an unanticipated runtime failure.
	ReasonInternal
)

// Error is a classified failure. Message is user facing; Err, when set, is the
// underlying cause and is reachable through errors.Unwrap.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Kind.String() + "::" + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The cause's text is appended to message so that it stays
// visible to the user after classification.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message + ": " + err.Error(), Err: err}
}

// NotFound reports a missing input.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: FileProcessing, Reason: ReasonNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unreadable reports a document that could not be read.
func Unreadable(err error, format string, args ...any) *Error {
	e := Wrap(FileProcessing, err, fmt.Sprintf(format, args...))
	e.Reason = ReasonUnreadable
	return e
}

// Internal reports an unanticipated failure while processing a document.
func Internal(err error, format string, args ...any) *Error {
	e := Wrap(FileProcessing, err, fmt.Sprintf(format, args...))
	e.Reason = ReasonInternal
	return e
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or Unclassified.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return Unclassified
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps err to the process exit status of the command-line tool.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	fe, ok := As(err)
	if !ok {
		return 1
	}
	switch {
	case fe.Reason == ReasonNotFound:
		return 4
	case fe.Kind == DecryptionFailed:
		return 7
	case fe.Reason == ReasonUnreadable:
		return 5
	case fe.Kind == PageRange:
		return 8
	case fe.Kind == IO:
		return 3
	case fe.Reason == ReasonInternal, fe.Kind == Unexpected:
		return 6
	case fe.Kind == InvalidArgument, fe.Kind == FileProcessing:
		return 2
	}
	return 1
}

// Line renders err as the single line written to standard error.
func Line(err error) string {
	if fe, ok := As(err); ok && fe.Kind != Unclassified {
		return fe.Error()
	}
	return Unexpected.String() + "::An unexpected error occurred: " + err.Error()
}
