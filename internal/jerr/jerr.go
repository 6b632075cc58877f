// Package jerr defines the error taxonomy shared by every pipeline stage:
// one *Error type carrying a Kind, a message, the user-facing Jsonnet span
// trace, and (via github.com/pkg/errors) a Go-level stack for host
// developers debugging the evaluator itself.
package jerr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fabvit86/jsonnet-go/ast"
)

// Kind is the error taxonomy from the error-handling design.
type Kind int

const (
	ParseError Kind = iota
	ImportError
	TypeError
	RuntimeError
	InfiniteLoop
	InfiniteManifest
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case ImportError:
		return "ImportError"
	case TypeError:
		return "TypeError"
	case RuntimeError:
		return "RuntimeError"
	case InfiniteLoop:
		return "InfiniteLoop"
	case InfiniteManifest:
		return "InfiniteManifest"
	default:
		return "UnknownError"
	}
}

// Error is the one carrier type for every kind of failure the pipeline
// can produce. Trace is the ordered list of spans that led to the
// failure, innermost first: the span the error was raised at, followed by
// each enclosing site (variable reference, Apply call site, field index)
// appended via WithFrame as the error propagates outward.
type Error struct {
	Kind    Kind
	Message string
	Trace   []ast.Span
	cause   error // captured via github.com/pkg/errors for a Go stack
}

func New(kind Kind, message string, span ast.Span) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Trace:   []ast.Span{span},
		cause:   errors.New(message),
	}
}

func Newf(kind Kind, span ast.Span, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), span)
}

// WithFrame returns a copy of e with span appended to the trace, for the
// caller to use as the call/force/assert site is unwound.
func (e *Error) WithFrame(span ast.Span) *Error {
	cp := *e
	cp.Trace = append(append([]ast.Span{}, e.Trace...), span)
	return &cp
}

func (e *Error) Error() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Trace[0])
}

// Unwrap exposes the pkg/errors-captured stack via errors.As/errors.Is,
// and lets callers recover a Go-level stack trace with
// github.com/pkg/errors.StackTrace for diagnosing the evaluator itself.
func (e *Error) Unwrap() error { return e.cause }

// Span returns the primary (innermost) span of the error.
func (e *Error) Span() ast.Span {
	if len(e.Trace) == 0 {
		return ast.Span{}
	}
	return e.Trace[0]
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	je, ok := err.(*Error)
	return ok && je.Kind == kind
}
