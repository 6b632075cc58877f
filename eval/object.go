package eval

import (
	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
	"github.com/fabvit86/jsonnet-go/internal/jlog"
)

func assertionFailed(_ *Object, msg string) error {
	return jerr.New(jerr.RuntimeError, msg, ast.Span{})
}

// FieldDef is one field's definition within a single layer.
type FieldDef struct {
	Hidden ast.Hiddenness
	Value  FieldFn
}

// AssertDef is one object-level assertion belonging to a single layer.
type AssertDef struct {
	Cond FieldFn
	Msg  FieldFn // nil for the default message
}

// Layer is the set of fields and asserts contributed by one side of an
// object literal or `+` operand. Dollar is fixed at the point the
// literal that produced this layer was evaluated, and does not change
// when the layer is later merged into a larger object via `+`.
type Layer struct {
	Fields  map[string]FieldDef
	Asserts []AssertDef
	Dollar  *Object
}

// Object is an ordered chain of mixin layers, most-derived first. This
// mirrors composing on lookup rather than eagerly deep-merging: `+`
// concatenates two chains in O(1) instead of walking and copying fields,
// and `super` is just a cheap re-slice of the tail.
type Object struct {
	Chain []*Layer

	// fieldCache memoizes the Thunk for a given key on this exact merged
	// Object instance, so forcing the same field twice through the same
	// composed value doesn't re-walk the chain or rebuild the super view.
	fieldCache map[string]*Thunk
}

// NewObject wraps a single freshly-evaluated literal's layer.
func NewObject(layer *Layer) *Object {
	return &Object{Chain: []*Layer{layer}}
}

// Add implements object `+`: right's fields take precedence over left's.
// Nested composition falls out for free — for left + (x + y), right's
// chain is already [y-layer, x-layer], so the result is
// [y-layer, x-layer, left-layers...], exactly the override order real
// Jsonnet specifies.
func Add(left, right *Object) *Object {
	chain := make([]*Layer, 0, len(left.Chain)+len(right.Chain))
	chain = append(chain, right.Chain...)
	chain = append(chain, left.Chain...)
	return &Object{Chain: chain}
}

// FieldThunk returns the thunk for key on o (self bound to o itself,
// super to the layers beneath wherever key is defined), its hiddenness,
// and whether the field exists at all. The thunk is cached per (o, key)
// so repeated access doesn't reconstruct it.
func (o *Object) FieldThunk(key string) (*Thunk, ast.Hiddenness, bool) {
	if t, ok := o.fieldCache[key]; ok {
		return t, o.hiddenOf(key), true
	}
	t, hidden, ok := o.FieldThunkForSelf(key, o)
	if !ok {
		return nil, ast.Visible, false
	}
	if o.fieldCache == nil {
		o.fieldCache = map[string]*Thunk{}
	}
	o.fieldCache[key] = t
	return t, hidden, true
}

// FieldThunkForSelf resolves key against o's chain exactly like
// FieldThunk, but threads self explicitly instead of binding it to o.
// This is what `super.f` needs: the base definition found by walking
// past the derived layers must still see the *original*, most-derived
// self for its own self-references (virtual dispatch), not the
// truncated super-chain it was found through. Not cached, since self
// varies by call site.
func (o *Object) FieldThunkForSelf(key string, self *Object) (*Thunk, ast.Hiddenness, bool) {
	for i, layer := range o.Chain {
		fd, ok := layer.Fields[key]
		if !ok {
			continue
		}
		super := &Object{Chain: o.Chain[i+1:]}
		dollar := layer.Dollar
		hidden := o.hiddenOf(key)
		jlog.Objectf("resolved field %q at chain depth %d, hidden=%v", key, i, hidden)
		t := NewThunk(ast.Span{}, func() (*Value, error) {
			return fd.Value(self, super, dollar)
		})
		return t, hidden, true
	}
	return nil, ast.Visible, false
}

// hiddenOf computes key's effective hiddenness by folding every layer
// that declares it, from the oldest (bottom of the chain) to the most
// derived: `::` forces hidden, `:::` forces visible, and plain `:`
// inherits whatever the less-derived layers already established — it
// never resets an inherited hidden/forced-visible back to the default.
// Taking only the most-derived definition's own tag is wrong: a derived
// layer's plain `k: v` re-declaration doesn't mean "visible", it means
// "whatever the base said".
func (o *Object) hiddenOf(key string) ast.Hiddenness {
	effective := ast.Visible
	for i := len(o.Chain) - 1; i >= 0; i-- {
		fd, ok := o.Chain[i].Fields[key]
		if !ok {
			continue
		}
		switch fd.Hidden {
		case ast.Hidden:
			effective = ast.Hidden
		case ast.ForcedVisible:
			effective = ast.Visible
		}
	}
	return effective
}

// VisibleFields returns the union of field names declared anywhere in
// the chain, regardless of hiddenness; callers that care about
// hiddenness (manifestation, objectFields/objectFieldsAll) filter this
// list through hiddenOf/FieldThunk themselves.
func (o *Object) VisibleFields() []string {
	seen := map[string]bool{}
	var names []string
	for _, layer := range o.Chain {
		for name := range layer.Fields {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// RunAsserts evaluates every assert declared anywhere in the chain,
// self bound to o and super to the layers beneath whichever layer
// declared it. Per the manifestation rule, asserts are not checked when
// an object is merely constructed or passed around — only when it is
// manifested (or, for a sub-object, when the containing manifestation
// reaches it) — so callers run this right before reading the object's
// fields for output.
func (o *Object) RunAsserts() error {
	for i, layer := range o.Chain {
		super := &Object{Chain: o.Chain[i+1:]}
		for _, a := range layer.Asserts {
			v, err := a.Cond(o, super, layer.Dollar)
			if err != nil {
				return err
			}
			if v.Truthy() {
				continue
			}
			if a.Msg == nil {
				return assertionFailed(o, "assertion failed")
			}
			msgVal, err := a.Msg(o, super, layer.Dollar)
			if err != nil {
				return err
			}
			return assertionFailed(o, msgVal.Str)
		}
	}
	return nil
}

// Has reports whether key is defined anywhere in the chain.
func (o *Object) Has(key string) bool {
	for _, layer := range o.Chain {
		if _, ok := layer.Fields[key]; ok {
			return true
		}
	}
	return false
}
