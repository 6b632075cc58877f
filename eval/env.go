package eval

// Env is an immutable lexical scope: a frame of name-to-thunk bindings
// chained to a parent. Lookups walk outward; a Let or function call
// pushes exactly one new frame rather than mutating an existing one, so
// a captured closure's Env is never invalidated by a sibling scope's
// later bindings.
type Env struct {
	vars   map[string]*Thunk
	parent *Env
}

// NewEnv returns an empty frame chained to parent (nil for the root).
func NewEnv(parent *Env) *Env {
	return &Env{vars: map[string]*Thunk{}, parent: parent}
}

// Bind adds name to this frame. Binding the same name twice in one frame
// overwrites it, so the later binding wins; neither the parser nor the
// desugarer rejects duplicate names within one local block.
func (e *Env) Bind(name string, t *Thunk) {
	e.vars[name] = t
}

// Lookup walks outward through parent frames for name.
func (e *Env) Lookup(name string) (*Thunk, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}
