package eval

import (
	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
	"github.com/fabvit86/jsonnet-go/internal/jlog"
)

type thunkState int

const (
	delayed thunkState = iota
	forcing
	done
	failed
)

// Thunk is a memoized, cycle-detecting delayed computation: the call-by-
// need primitive every object field, array element, local binding, and
// function argument is built from. Forcing it twice returns the same
// Value without recomputing; forcing it while it is already being forced
// (a field whose own definition depends on itself) reports InfiniteLoop
// instead of recursing forever.
type Thunk struct {
	state   thunkState
	compute func() (*Value, error)
	value   *Value
	err     error
	span    ast.Span
}

// NewThunk delays compute, evaluated at most once on first Force. span
// is used only to locate a cycle if one is detected.
func NewThunk(span ast.Span, compute func() (*Value, error)) *Thunk {
	return &Thunk{state: delayed, compute: compute, span: span}
}

// Resolved wraps an already-known Value in a no-op Thunk.
func Resolved(v *Value) *Thunk {
	return &Thunk{state: done, value: v}
}

// Force evaluates the thunk if it hasn't been already, caching the
// result (or the error) for subsequent calls.
func (t *Thunk) Force() (*Value, error) {
	switch t.state {
	case done:
		return t.value, nil
	case failed:
		return nil, t.err
	case forcing:
		return nil, jerr.New(jerr.InfiniteLoop, "infinite recursion during thunk evaluation", t.span)
	}
	t.state = forcing
	jlog.Thunkf("forcing thunk at %s", t.span)
	v, err := t.compute()
	t.compute = nil
	if err != nil {
		t.state = failed
		t.err = err
		return nil, err
	}
	t.state = done
	t.value = v
	return v, nil
}
