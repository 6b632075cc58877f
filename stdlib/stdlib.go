// Package stdlib implements the native std.* functions bound into the
// root environment of every evaluation. Each entry is a plain Go
// function wrapped as an eval.Function with no Core body: its Params
// give the evaluator's ordinary named-argument machinery something to
// bind against, and its Body reads the bound arguments back out of the
// call Env instead of evaluating a core.Node.
package stdlib

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/eval"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
	"github.com/fabvit86/jsonnet-go/manifest"
)

// Root builds the std object bound to the name "std" in the root
// environment.
func Root() *eval.Value {
	layer := &eval.Layer{Fields: map[string]eval.FieldDef{}}
	for name, fn := range builtins() {
		fn := fn
		layer.Fields[name] = eval.FieldDef{Hidden: ast.Visible, Value: func(self, super, dollar *eval.Object) (*eval.Value, error) {
			return eval.Fun(fn), nil
		}}
	}
	return eval.Obj(eval.NewObject(layer))
}

func builtins() map[string]*eval.Function {
	out := map[string]*eval.Function{}
	reg := func(name string, params []string, defaults map[string]eval.BodyFn, impl func(args map[string]*eval.Value) (*eval.Value, error)) {
		out[name] = nativeFunc(name, params, defaults, impl)
	}

	reg("type", []string{"x"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Str(a["x"].Kind.String()), nil
	})
	reg("length", []string{"x"}, nil, stdLength)
	reg("makeArray", []string{"sz", "func"}, nil, stdMakeArray)
	reg("filter", []string{"func", "arr"}, nil, stdFilter)
	reg("map", []string{"func", "arr"}, nil, stdMap)
	reg("foldl", []string{"func", "arr", "init"}, nil, stdFoldl)
	reg("foldr", []string{"func", "arr", "init"}, nil, stdFoldr)
	reg("join", []string{"sep", "arr"}, nil, stdJoin)
	reg("objectHas", []string{"o", "f"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return stdObjectHas(a, false)
	})
	reg("objectHasAll", []string{"o", "f"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return stdObjectHas(a, true)
	})
	reg("objectFields", []string{"o"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return stdObjectFields(a, false)
	})
	reg("objectFieldsAll", []string{"o"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return stdObjectFields(a, true)
	})
	reg("mergePatch", []string{"a", "b"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return mergePatch(a["a"], a["b"])
	})
	reg("manifestJsonEx", []string{"value", "indent"}, nil, stdManifestJsonEx)
	reg("toString", []string{"a"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		s, err := eval.Stringify(a["a"])
		if err != nil {
			return nil, err
		}
		return eval.Str(s), nil
	})
	reg("codepoint", []string{"str"}, nil, stdCodepoint)
	reg("char", []string{"n"}, nil, stdChar)
	reg("substr", []string{"str", "from", "len"}, nil, stdSubstr)
	reg("split", []string{"str", "c"}, nil, stdSplit)
	reg("trim", []string{"str"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Str(strings.TrimSpace(a["str"].Str)), nil
	})
	reg("reverse", []string{"arr"}, nil, stdReverse)
	reg("sort", []string{"arr", "keyF"}, map[string]eval.BodyFn{"keyF": identityDefault}, stdSort)
	reg("range", []string{"from", "to"}, nil, stdRange)
	reg("abs", []string{"n"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Abs(a["n"].Num)), nil
	})
	reg("max", []string{"a", "b"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Max(a["a"].Num, a["b"].Num)), nil
	})
	reg("min", []string{"a", "b"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Min(a["a"].Num, a["b"].Num)), nil
	})
	reg("floor", []string{"x"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Floor(a["x"].Num)), nil
	})
	reg("ceil", []string{"x"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Ceil(a["x"].Num)), nil
	})
	reg("pow", []string{"x", "n"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Pow(a["x"].Num, a["n"].Num)), nil
	})
	reg("sqrt", []string{"x"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.Num(math.Sqrt(a["x"].Num)), nil
	})
	reg("assertEqual", []string{"a", "b"}, nil, stdAssertEqual)
	reg("format", []string{"str", "vals"}, nil, func(a map[string]*eval.Value) (*eval.Value, error) {
		return eval.FormatOp(a["str"].Str, a["vals"], ast.Span{})
	})

	return out
}

// identityDefault is std.sort's default keyF: the identity function.
func identityDefault(env *eval.Env, self, super, dollar *eval.Object) (*eval.Value, error) {
	id := &eval.Function{
		Params: []eval.Param{{Name: "x"}},
		Body: func(env *eval.Env, self, super, dollar *eval.Object) (*eval.Value, error) {
			t, _ := env.Lookup("x")
			return t.Force()
		},
	}
	return eval.Fun(id), nil
}

// nativeFunc wraps impl (which reads its already-bound, already-forced
// arguments from a map) as an eval.Function the ordinary Apply path can
// call like any Jsonnet-level function.
func nativeFunc(name string, paramNames []string, defaults map[string]eval.BodyFn, impl func(args map[string]*eval.Value) (*eval.Value, error)) *eval.Function {
	params := make([]eval.Param, len(paramNames))
	for i, pn := range paramNames {
		params[i] = eval.Param{Name: pn, Default: defaults[pn]}
	}
	body := func(env *eval.Env, self, super, dollar *eval.Object) (*eval.Value, error) {
		args := make(map[string]*eval.Value, len(paramNames))
		for _, pn := range paramNames {
			t, ok := env.Lookup(pn)
			if !ok {
				return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("std.%s: missing argument %q", name, pn), ast.Span{})
			}
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			args[pn] = v
		}
		return impl(args)
	}
	return &eval.Function{Params: params, Body: body, Name: "std." + name}
}

func typeErr(name, msg string) error {
	return jerr.New(jerr.TypeError, fmt.Sprintf("std.%s: %s", name, msg), ast.Span{})
}

func stdLength(a map[string]*eval.Value) (*eval.Value, error) {
	x := a["x"]
	switch x.Kind {
	case eval.VStr:
		return eval.Num(float64(utf8.RuneCountInString(x.Str))), nil
	case eval.VArr:
		return eval.Num(float64(len(x.Arr))), nil
	case eval.VObj:
		return eval.Num(float64(len(x.Obj.VisibleFields()))), nil
	case eval.VFun:
		return eval.Num(float64(len(x.Fun.Params))), nil
	default:
		return nil, typeErr("length", "argument must be a string, array, object, or function")
	}
}

func stdMakeArray(a map[string]*eval.Value) (*eval.Value, error) {
	sz := a["sz"]
	fn := a["func"]
	if sz.Kind != eval.VNum || fn.Kind != eval.VFun {
		return nil, typeErr("makeArray", "expects (number, function)")
	}
	n := int(sz.Num)
	out := make([]*eval.Thunk, n)
	for i := 0; i < n; i++ {
		i := i
		out[i] = eval.NewThunk(ast.Span{}, func() (*eval.Value, error) {
			return eval.Call(fn.Fun, []*eval.Value{eval.Num(float64(i))})
		})
	}
	return eval.Arr(out), nil
}

func stdFilter(a map[string]*eval.Value) (*eval.Value, error) {
	fn := a["func"]
	arr := a["arr"]
	if fn.Kind != eval.VFun || arr.Kind != eval.VArr {
		return nil, typeErr("filter", "expects (function, array)")
	}
	var out []*eval.Thunk
	for _, t := range arr.Arr {
		v, err := t.Force()
		if err != nil {
			return nil, err
		}
		keep, err := eval.Call(fn.Fun, []*eval.Value{v})
		if err != nil {
			return nil, err
		}
		if keep.Truthy() {
			out = append(out, t)
		}
	}
	return eval.Arr(out), nil
}

func stdMap(a map[string]*eval.Value) (*eval.Value, error) {
	fn := a["func"]
	arr := a["arr"]
	if fn.Kind != eval.VFun || arr.Kind != eval.VArr {
		return nil, typeErr("map", "expects (function, array)")
	}
	out := make([]*eval.Thunk, len(arr.Arr))
	for i, t := range arr.Arr {
		t := t
		out[i] = eval.NewThunk(ast.Span{}, func() (*eval.Value, error) {
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			return eval.Call(fn.Fun, []*eval.Value{v})
		})
	}
	return eval.Arr(out), nil
}

func stdFoldl(a map[string]*eval.Value) (*eval.Value, error) {
	fn := a["func"]
	arr := a["arr"]
	if fn.Kind != eval.VFun || arr.Kind != eval.VArr {
		return nil, typeErr("foldl", "expects (function, array, init)")
	}
	acc := a["init"]
	for _, t := range arr.Arr {
		v, err := t.Force()
		if err != nil {
			return nil, err
		}
		acc, err = eval.Call(fn.Fun, []*eval.Value{acc, v})
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func stdFoldr(a map[string]*eval.Value) (*eval.Value, error) {
	fn := a["func"]
	arr := a["arr"]
	if fn.Kind != eval.VFun || arr.Kind != eval.VArr {
		return nil, typeErr("foldr", "expects (function, array, init)")
	}
	acc := a["init"]
	for i := len(arr.Arr) - 1; i >= 0; i-- {
		v, err := arr.Arr[i].Force()
		if err != nil {
			return nil, err
		}
		var err2 error
		acc, err2 = eval.Call(fn.Fun, []*eval.Value{v, acc})
		if err2 != nil {
			return nil, err2
		}
	}
	return acc, nil
}

func stdJoin(a map[string]*eval.Value) (*eval.Value, error) {
	sep := a["sep"]
	arr := a["arr"]
	if arr.Kind != eval.VArr {
		return nil, typeErr("join", "second argument must be an array")
	}
	if sep.Kind == eval.VStr {
		parts := make([]string, 0, len(arr.Arr))
		for _, t := range arr.Arr {
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			if v.Kind == eval.VNull {
				continue
			}
			if v.Kind != eval.VStr {
				return nil, typeErr("join", "array elements must be strings when separator is a string")
			}
			parts = append(parts, v.Str)
		}
		return eval.Str(strings.Join(parts, sep.Str)), nil
	}
	if sep.Kind == eval.VArr {
		var out []*eval.Thunk
		first := true
		for _, t := range arr.Arr {
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			if v.Kind == eval.VNull {
				continue
			}
			if v.Kind != eval.VArr {
				return nil, typeErr("join", "array elements must be arrays when separator is an array")
			}
			if !first {
				out = append(out, sep.Arr...)
			}
			out = append(out, v.Arr...)
			first = false
		}
		return eval.Arr(out), nil
	}
	return nil, typeErr("join", "separator must be a string or array")
}

func stdObjectHas(a map[string]*eval.Value, includeHidden bool) (*eval.Value, error) {
	o := a["o"]
	f := a["f"]
	if o.Kind != eval.VObj || f.Kind != eval.VStr {
		return nil, typeErr("objectHas", "expects (object, string)")
	}
	_, hidden, ok := o.Obj.FieldThunk(f.Str)
	if !ok {
		return eval.Bool(false), nil
	}
	if hidden == ast.Hidden && !includeHidden {
		return eval.Bool(false), nil
	}
	return eval.Bool(true), nil
}

func stdObjectFields(a map[string]*eval.Value, includeHidden bool) (*eval.Value, error) {
	o := a["o"]
	if o.Kind != eval.VObj {
		return nil, typeErr("objectFields", "argument must be an object")
	}
	names := eval.SortedVisibleFields(o.Obj)
	out := make([]*eval.Thunk, 0, len(names))
	for _, name := range names {
		_, hidden, _ := o.Obj.FieldThunk(name)
		if hidden == ast.Hidden && !includeHidden {
			continue
		}
		out = append(out, eval.Resolved(eval.Str(name)))
	}
	return eval.Arr(out), nil
}

func mergePatch(a, b *eval.Value) (*eval.Value, error) {
	if b.Kind == eval.VNull {
		return a, nil
	}
	if b.Kind != eval.VObj {
		return b, nil
	}
	fields := map[string]*eval.Value{}
	if a.Kind == eval.VObj {
		for _, name := range eval.SortedVisibleFields(a.Obj) {
			t, hidden, _ := a.Obj.FieldThunk(name)
			if hidden == ast.Hidden {
				continue
			}
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			fields[name] = v
		}
	}
	for _, name := range eval.SortedVisibleFields(b.Obj) {
		t, hidden, _ := b.Obj.FieldThunk(name)
		if hidden == ast.Hidden {
			continue
		}
		v, err := t.Force()
		if err != nil {
			return nil, err
		}
		if v.Kind == eval.VNull {
			delete(fields, name)
			continue
		}
		if existing, ok := fields[name]; ok && existing.Kind == eval.VObj && v.Kind == eval.VObj {
			merged, err := mergePatch(existing, v)
			if err != nil {
				return nil, err
			}
			fields[name] = merged
			continue
		}
		fields[name] = v
	}
	return objectFromMap(fields), nil
}

func objectFromMap(fields map[string]*eval.Value) *eval.Value {
	layer := &eval.Layer{Fields: map[string]eval.FieldDef{}}
	for name, v := range fields {
		v := v
		layer.Fields[name] = eval.FieldDef{Hidden: ast.Visible, Value: func(self, super, dollar *eval.Object) (*eval.Value, error) {
			return v, nil
		}}
	}
	return eval.Obj(eval.NewObject(layer))
}

func stdManifestJsonEx(a map[string]*eval.Value) (*eval.Value, error) {
	value := a["value"]
	indent := a["indent"]
	if indent.Kind != eval.VStr {
		return nil, typeErr("manifestJsonEx", "indent must be a string")
	}
	s, err := manifest.Indented(value, indent.Str)
	if err != nil {
		return nil, err
	}
	return eval.Str(s), nil
}

func stdCodepoint(a map[string]*eval.Value) (*eval.Value, error) {
	str := a["str"]
	if str.Kind != eval.VStr {
		return nil, typeErr("codepoint", "argument must be a single-character string")
	}
	r, _ := utf8.DecodeRuneInString(str.Str)
	if r == utf8.RuneError {
		return nil, typeErr("codepoint", "argument must be a single valid-UTF-8 character")
	}
	return eval.Num(float64(r)), nil
}

func stdChar(a map[string]*eval.Value) (*eval.Value, error) {
	n := a["n"]
	if n.Kind != eval.VNum {
		return nil, typeErr("char", "argument must be a number")
	}
	return eval.Str(string(rune(int(n.Num)))), nil
}

func stdSubstr(a map[string]*eval.Value) (*eval.Value, error) {
	str := a["str"]
	from := a["from"]
	length := a["len"]
	if str.Kind != eval.VStr || from.Kind != eval.VNum || length.Kind != eval.VNum {
		return nil, typeErr("substr", "expects (string, number, number)")
	}
	runes := []rune(str.Str)
	start := clamp(int(from.Num), 0, len(runes))
	end := clamp(start+int(length.Num), start, len(runes))
	return eval.Str(string(runes[start:end])), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stdSplit(a map[string]*eval.Value) (*eval.Value, error) {
	str := a["str"]
	c := a["c"]
	if str.Kind != eval.VStr || c.Kind != eval.VStr {
		return nil, typeErr("split", "expects (string, string)")
	}
	parts := strings.Split(str.Str, c.Str)
	out := make([]*eval.Thunk, len(parts))
	for i, p := range parts {
		out[i] = eval.Resolved(eval.Str(p))
	}
	return eval.Arr(out), nil
}

func stdReverse(a map[string]*eval.Value) (*eval.Value, error) {
	arr := a["arr"]
	if arr.Kind != eval.VArr {
		return nil, typeErr("reverse", "argument must be an array")
	}
	out := make([]*eval.Thunk, len(arr.Arr))
	for i, t := range arr.Arr {
		out[len(arr.Arr)-1-i] = t
	}
	return eval.Arr(out), nil
}

func stdSort(a map[string]*eval.Value) (*eval.Value, error) {
	arr := a["arr"]
	keyF := a["keyF"]
	if arr.Kind != eval.VArr || keyF.Kind != eval.VFun {
		return nil, typeErr("sort", "expects (array, function)")
	}
	elems := make([]*eval.Value, len(arr.Arr))
	keys := make([]*eval.Value, len(arr.Arr))
	for i, t := range arr.Arr {
		v, err := t.Force()
		if err != nil {
			return nil, err
		}
		k, err := eval.Call(keyF.Fun, []*eval.Value{v})
		if err != nil {
			return nil, err
		}
		elems[i] = v
		keys[i] = k
	}
	idx := make([]int, len(elems))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		cmp, err := eval.Compare(keys[idx[i]], keys[idx[j]])
		if err != nil {
			sortErr = err
			return false
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]*eval.Thunk, len(elems))
	for i, j := range idx {
		out[i] = eval.Resolved(elems[j])
	}
	return eval.Arr(out), nil
}

func stdRange(a map[string]*eval.Value) (*eval.Value, error) {
	from := a["from"]
	to := a["to"]
	if from.Kind != eval.VNum || to.Kind != eval.VNum {
		return nil, typeErr("range", "expects (number, number)")
	}
	lo, hi := int(from.Num), int(to.Num)
	if hi < lo {
		return eval.Arr(nil), nil
	}
	out := make([]*eval.Thunk, hi-lo+1)
	for i := range out {
		out[i] = eval.Resolved(eval.Num(float64(lo + i)))
	}
	return eval.Arr(out), nil
}

func stdAssertEqual(a map[string]*eval.Value) (*eval.Value, error) {
	eq, err := eval.DeepEqual(a["a"], a["b"])
	if err != nil {
		return nil, err
	}
	if !eq {
		as, _ := eval.Stringify(a["a"])
		bs, _ := eval.Stringify(a["b"])
		return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("assertEqual failed: %s != %s", as, bs), ast.Span{})
	}
	return eval.Bool(true), nil
}
