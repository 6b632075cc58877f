// Package eval implements the call-by-need evaluator: an environment of
// thunks, a lazy mixin-chain object model for self/super, and a
// tree-walking evaluator over core.Node.
package eval

// Kind discriminates the runtime Value variants.
type Kind int

const (
	VNull Kind = iota
	VBool
	VNum
	VStr
	VArr
	VObj
	VFun
)

func (k Kind) String() string {
	switch k {
	case VNull:
		return "null"
	case VBool:
		return "boolean"
	case VNum:
		return "number"
	case VStr:
		return "string"
	case VArr:
		return "array"
	case VObj:
		return "object"
	case VFun:
		return "function"
	default:
		return "<unknown value>"
	}
}

// Value is the runtime tagged union every evaluation step produces.
// Arr holds thunks rather than Values directly: array elements are as
// lazy as object fields.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []*Thunk
	Obj  *Object
	Fun  *Function
}

var Null = &Value{Kind: VNull}

func Bool(b bool) *Value { return &Value{Kind: VBool, Bool: b} }
func Num(n float64) *Value { return &Value{Kind: VNum, Num: n} }
func Str(s string) *Value  { return &Value{Kind: VStr, Str: s} }
func Arr(elems []*Thunk) *Value { return &Value{Kind: VArr, Arr: elems} }
func Obj(o *Object) *Value      { return &Value{Kind: VObj, Obj: o} }
func Fun(f *Function) *Value    { return &Value{Kind: VFun, Fun: f} }

func (v *Value) Truthy() bool { return v.Kind == VBool && v.Bool }

// Function is a closure: everything it needs to run is captured here at
// the point the `function(...) ...` literal (or a native stdlib entry)
// was evaluated, not re-derived from the call site.
type Function struct {
	Params []Param
	Body   BodyFn
	Env    *Env
	Self   *Object
	Super  *Object
	Dollar *Object
	Name   string // for stack traces; "" for anonymous literals
}

// Param mirrors core.Param with its Default already bound to the
// closure's defining Env, so it can be evaluated lazily per call without
// threading the original Env around separately.
type Param struct {
	Name    string
	Default BodyFn // nil if required
}

// BodyFn evaluates a function body or a parameter default against a call
// Env. Native stdlib functions and user-defined core.Node bodies share
// this one shape.
type BodyFn func(env *Env, self, super, dollar *Object) (*Value, error)

// FieldFn evaluates an object field or assert's expression. Unlike
// BodyFn it takes no Env: the lexical environment of an object field is
// fixed at the point the literal was evaluated, already closed over by
// the function this type describes — only self/super/dollar vary, and
// only because the same field definition is shared across every merged
// Object the layer it belongs to ends up part of.
type FieldFn func(self, super, dollar *Object) (*Value, error)
