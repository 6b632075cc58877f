// Package manifest renders an evaluated eval.Value as a JSON tree, the
// final step of the pipeline: forcing every thunk reachable from the
// root value, running an object's asserts each time the walk reaches
// it, before its fields are read, and rejecting what JSON cannot represent (functions, and a
// value that recurses into itself).
package manifest

import (
	"encoding/json"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/eval"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
)

// seen tracks the objects and arrays currently being manifested on the
// current path, to catch a value that contains itself. Keyed by pointer
// identity of the Object or the array's Thunk slice header.
type seen struct {
	objects map[*eval.Object]bool
	arrays  map[*[]*eval.Thunk]bool
}

func newSeen() *seen {
	return &seen{objects: map[*eval.Object]bool{}, arrays: map[*[]*eval.Thunk]bool{}}
}

// ToAny forces v (and everything it reaches) into a plain Go JSON tree:
// nil, bool, float64, string, []any, map[string]any. This is the "JSON"
// the root Evaluate entry point returns.
func ToAny(v *eval.Value) (any, error) {
	return toAny(v, newSeen())
}

// String manifests v as compact JSON text.
func String(v *eval.Value) (string, error) {
	tree, err := ToAny(v)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return "", jerr.New(jerr.RuntimeError, err.Error(), ast.Span{})
	}
	return string(b), nil
}

// Indented manifests v as JSON pretty-printed with indent repeated per
// nesting level, matching std.manifestJsonEx's indent argument.
func Indented(v *eval.Value, indent string) (string, error) {
	tree, err := ToAny(v)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(tree, "", indent)
	if err != nil {
		return "", jerr.New(jerr.RuntimeError, err.Error(), ast.Span{})
	}
	return string(b), nil
}

func toAny(v *eval.Value, s *seen) (any, error) {
	switch v.Kind {
	case eval.VNull:
		return nil, nil
	case eval.VBool:
		return v.Bool, nil
	case eval.VNum:
		return v.Num, nil
	case eval.VStr:
		return v.Str, nil
	case eval.VArr:
		return arrayToAny(v, s)
	case eval.VObj:
		return objectToAny(v, s)
	case eval.VFun:
		return nil, jerr.New(jerr.RuntimeError, "cannot manifest a function value", ast.Span{})
	default:
		return nil, jerr.New(jerr.RuntimeError, "cannot manifest value", ast.Span{})
	}
}

func arrayToAny(v *eval.Value, s *seen) (any, error) {
	if s.arrays[&v.Arr] {
		return nil, jerr.New(jerr.InfiniteManifest, "array manifests itself", ast.Span{})
	}
	if len(v.Arr) == 0 {
		return []any{}, nil
	}
	s.arrays[&v.Arr] = true
	defer delete(s.arrays, &v.Arr)

	out := make([]any, len(v.Arr))
	for i, t := range v.Arr {
		ev, err := t.Force()
		if err != nil {
			return nil, err
		}
		elem, err := toAny(ev, s)
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func objectToAny(v *eval.Value, s *seen) (any, error) {
	o := v.Obj
	if s.objects[o] {
		return nil, jerr.New(jerr.InfiniteManifest, "object manifests itself", ast.Span{})
	}
	s.objects[o] = true
	defer delete(s.objects, o)

	if err := o.RunAsserts(); err != nil {
		return nil, err
	}

	out := map[string]any{}
	for _, name := range visibleNames(o) {
		t, _, _ := o.FieldThunk(name)
		fv, err := t.Force()
		if err != nil {
			return nil, err
		}
		val, err := toAny(fv, s)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

// visibleNames is the hidden-field-excluding variant of
// eval.SortedVisibleFields: manifestation is the one place hiddenness
// (`::`) actually takes effect. Key order in the resulting map[string]any
// doesn't matter here — encoding/json sorts map keys itself, which is
// exactly the key-sorted order manifestation requires.
func visibleNames(o *eval.Object) []string {
	all := eval.SortedVisibleFields(o)
	out := make([]string, 0, len(all))
	for _, name := range all {
		if _, hidden, _ := o.FieldThunk(name); hidden != ast.Hidden {
			out = append(out, name)
		}
	}
	return out
}
