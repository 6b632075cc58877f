package eval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/core"
	"github.com/fabvit86/jsonnet-go/internal/econf"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
)

// Ctx is the dynamic context threaded through Eval: the lexical Env plus
// the three values that, unlike Env, are NOT re-derived from lexical
// scoping alone — self, super and the root ($) are fixed per object
// layer at the point it was evaluated and carried unchanged through
// field bodies, while a function literal freezes them into its closure
// instead of inheriting the caller's.
type Ctx struct {
	Env    *Env
	Self   *Object
	Super  *Object
	Dollar *Object
	Cfg    econf.Config

	// depth is a pointer shared by every Ctx derived from the same
	// Evaluate call, not copied per-frame: a recursive function's body
	// closure captures the Ctx in effect when the `function(...)...`
	// literal was evaluated, so a plain per-Ctx counter would reset to
	// that definition-time value on every call instead of growing with
	// the live call chain.
	depth *int

	// ctx is polled at the top of Eval so a host can interrupt a
	// long-running evaluation between reductions. nil (the zero value)
	// means no cancellation is wired up, which is never polled.
	ctx context.Context
}

// NewRootCtx starts a fresh call-depth counter for one evaluation run.
func NewRootCtx(env *Env, cfg econf.Config) Ctx {
	d := 0
	return Ctx{Env: env, Cfg: cfg, depth: &d}
}

// WithContext returns a copy of c that polls ctx for cancellation.
func (c Ctx) WithContext(ctx context.Context) Ctx { c.ctx = ctx; return c }

func (c Ctx) withEnv(e *Env) Ctx { c.Env = e; return c }

// derive returns a copy of c with env/self/super/dollar replaced,
// carrying Cfg, depth, and ctx through unchanged. Every nested Eval call
// that needs to rebind the dynamic context (object field bodies, lambda
// bodies, comprehension iterations) goes through this instead of
// constructing a Ctx literal by hand, so none of them can accidentally
// drop the shared depth counter or the cancellation context.
func (c Ctx) derive(env *Env, self, super, dollar *Object) Ctx {
	c.Env = env
	c.Self = self
	c.Super = super
	c.Dollar = dollar
	return c
}

// enterCall increments the shared call-depth counter for the duration of
// one Apply, returning a decrement func the caller defers.
func (c Ctx) enterCall(span ast.Span) (func(), error) {
	*c.depth++
	if *c.depth > c.Cfg.MaxCallDepth {
		*c.depth--
		return func() {}, jerr.New(jerr.RuntimeError, "max call depth exceeded", span)
	}
	return func() { *c.depth-- }, nil
}

// Eval evaluates a desugared Core node against a dynamic context.
func Eval(n *core.Node, c Ctx) (*Value, error) {
	if n == nil {
		return Null, nil
	}
	if c.ctx != nil {
		if err := c.ctx.Err(); err != nil {
			return nil, jerr.New(jerr.RuntimeError, err.Error(), n.Span)
		}
	}
	switch n.Kind {
	case core.NullLit:
		return Null, nil
	case core.BoolLit:
		return Bool(n.Bool), nil
	case core.NumLit:
		return Num(n.Num), nil
	case core.StrLit:
		return Str(n.Str), nil
	case core.Var:
		t, ok := c.Env.Lookup(n.Name)
		if !ok {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("unknown variable %q", n.Name), n.Span).WithFrame(n.Span)
		}
		v, err := t.Force()
		if err != nil {
			return nil, wrapFrame(err, n.Span)
		}
		return v, nil
	case core.Self:
		if c.Self == nil {
			return nil, jerr.New(jerr.RuntimeError, "self is not available here", n.Span)
		}
		return Obj(c.Self), nil
	case core.Dollar:
		if c.Dollar == nil {
			return nil, jerr.New(jerr.RuntimeError, "$ is not available here", n.Span)
		}
		return Obj(c.Dollar), nil
	case core.Func:
		return evalFunc(n, c), nil
	case core.Apply:
		return evalApply(n, c)
	case core.Let:
		return evalLet(n, c)
	case core.If:
		return evalIf(n, c)
	case core.BinOp:
		return evalBinOp(n, c)
	case core.UnyOp:
		return evalUnyOp(n, c)
	case core.ArrayLit:
		return evalArrayLit(n, c)
	case core.ArrayComp:
		return evalArrayComp(n, c)
	case core.ObjectLit:
		return evalObjectLit(n, c)
	case core.ObjectComp:
		return evalObjectComp(n, c)
	case core.Index:
		return evalIndex(n, c)
	case core.Slice:
		return evalSlice(n, c)
	case core.ErrorExpr:
		return evalErrorExpr(n, c)
	case core.SuperIndex:
		return evalSuperIndex(n, c)
	case core.InSuper:
		return evalInSuper(n, c)
	default:
		return nil, jerr.New(jerr.RuntimeError, "unhandled core node kind", n.Span)
	}
}

func wrapFrame(err error, span ast.Span) error {
	if je, ok := err.(*jerr.Error); ok {
		return je.WithFrame(span)
	}
	return err
}

func evalFunc(n *core.Node, c Ctx) *Value {
	params := make([]Param, len(n.Params))
	for i, p := range n.Params {
		p := p
		if p.Default == nil {
			params[i] = Param{Name: p.Name}
			continue
		}
		params[i] = Param{Name: p.Name, Default: func(env *Env, self, super, dollar *Object) (*Value, error) {
			return Eval(p.Default, c.derive(env, self, super, dollar))
		}}
	}
	body := n.Body
	bodyFn := func(env *Env, self, super, dollar *Object) (*Value, error) {
		return Eval(body, c.derive(env, self, super, dollar))
	}
	return Fun(&Function{Params: params, Body: bodyFn, Env: c.Env, Self: c.Self, Super: c.Super, Dollar: c.Dollar})
}

func evalApply(n *core.Node, c Ctx) (*Value, error) {
	target, err := Eval(n.Target, c)
	if err != nil {
		return nil, err
	}
	if target.Kind != VFun {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("called value is not a function, got %s", target.Kind), n.Span)
	}
	fn := target.Fun
	leaveCall, err := c.enterCall(n.Span)
	if err != nil {
		return nil, err
	}
	defer leaveCall()

	assigned := map[string]*Thunk{}
	positional := 0
	for _, arg := range n.Args {
		name := arg.Name
		if name == "" {
			if positional >= len(fn.Params) {
				return nil, jerr.New(jerr.RuntimeError, "too many arguments", n.Span)
			}
			name = fn.Params[positional].Name
			positional++
		}
		if !hasParam(fn.Params, name) {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("no parameter named %q", name), n.Span)
		}
		if _, dup := assigned[name]; dup {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("argument %q bound more than once", name), n.Span)
		}
		argNode := arg.Value
		argCtx := c
		assigned[name] = NewThunk(n.Span, func() (*Value, error) { return Eval(argNode, argCtx) })
	}

	callEnv := NewEnv(fn.Env)
	for _, p := range fn.Params {
		t, ok := assigned[p.Name]
		if !ok {
			if p.Default == nil {
				return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("missing argument %q", p.Name), n.Span)
			}
			def := p.Default
			t = NewThunk(n.Span, func() (*Value, error) { return def(callEnv, fn.Self, fn.Super, fn.Dollar) })
		}
		callEnv.Bind(p.Name, t)
	}
	v, err := fn.Body(callEnv, fn.Self, fn.Super, fn.Dollar)
	if err != nil {
		return nil, wrapFrame(err, n.Span)
	}
	return v, nil
}

// Call invokes fn directly with already-evaluated positional args,
// bypassing the Core Apply node machinery. This is what native stdlib
// functions use to call a Jsonnet-level function value (std.map's func
// argument, std.sort's keyF, and so on) without needing a core.Node to
// desugar from.
func Call(fn *Function, args []*Value) (*Value, error) {
	if len(args) > len(fn.Params) {
		return nil, jerr.New(jerr.RuntimeError, "too many arguments", ast.Span{})
	}
	callEnv := NewEnv(fn.Env)
	for i, p := range fn.Params {
		p := p
		if i < len(args) {
			callEnv.Bind(p.Name, Resolved(args[i]))
			continue
		}
		if p.Default == nil {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("missing argument %q", p.Name), ast.Span{})
		}
		def := p.Default
		callEnv.Bind(p.Name, NewThunk(ast.Span{}, func() (*Value, error) { return def(callEnv, fn.Self, fn.Super, fn.Dollar) }))
	}
	return fn.Body(callEnv, fn.Self, fn.Super, fn.Dollar)
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func evalLet(n *core.Node, c Ctx) (*Value, error) {
	env := NewEnv(c.Env)
	bodyCtx := c.withEnv(env)
	for _, b := range n.Binds {
		b := b
		env.Bind(b.Name, NewThunk(b.Value.Span, func() (*Value, error) {
			return Eval(b.Value, bodyCtx)
		}))
	}
	return Eval(n.Body, bodyCtx)
}

func evalIf(n *core.Node, c Ctx) (*Value, error) {
	cond, err := Eval(n.Cond, c)
	if err != nil {
		return nil, err
	}
	if cond.Kind != VBool {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("condition must be a boolean, got %s", cond.Kind), n.Span)
	}
	if cond.Bool {
		return Eval(n.Then, c)
	}
	return Eval(n.Else, c)
}

func evalArrayLit(n *core.Node, c Ctx) (*Value, error) {
	elems := make([]*Thunk, len(n.Elements))
	for i, e := range n.Elements {
		e := e
		elems[i] = NewThunk(e.Span, func() (*Value, error) { return Eval(e, c) })
	}
	return Arr(elems), nil
}

func evalArrayComp(n *core.Node, c Ctx) (*Value, error) {
	inVal, err := Eval(n.CompIn, c)
	if err != nil {
		return nil, err
	}
	if inVal.Kind != VArr {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("for-expression requires an array, got %s", inVal.Kind), n.Span)
	}
	var out []*Thunk
	for _, elemThunk := range inVal.Arr {
		elemVal, err := elemThunk.Force()
		if err != nil {
			return nil, err
		}
		env := NewEnv(c.Env)
		env.Bind(n.CompVar, Resolved(elemVal))
		iterCtx := c.withEnv(env)
		if n.CompIf != nil {
			condVal, err := Eval(n.CompIf, iterCtx)
			if err != nil {
				return nil, err
			}
			if condVal.Kind != VBool {
				return nil, jerr.New(jerr.TypeError, "if-expression in comprehension must be boolean", n.Span)
			}
			if !condVal.Bool {
				continue
			}
		}
		valNode := n.CompValue
		valCtx := iterCtx
		out = append(out, NewThunk(n.Span, func() (*Value, error) { return Eval(valNode, valCtx) }))
	}
	return Arr(out), nil
}

// evalObjectLit builds the Object's single layer. Field names are
// evaluated eagerly, right now, against the enclosing env with no self/
// super bound — a computed key may not reference self, matching the
// restriction that the field set must be fully known before the object
// (and therefore self) exists. Field values stay lazy, evaluated only
// when something forces them.
func evalObjectLit(n *core.Node, c Ctx) (*Value, error) {
	layer := &Layer{Fields: map[string]FieldDef{}}
	for _, f := range n.Fields {
		keyCtx := c.derive(c.Env, nil, nil, c.Dollar)
		keyVal, err := Eval(f.KeyExpr, keyCtx)
		if err != nil {
			return nil, err
		}
		if keyVal.Kind != VStr {
			return nil, jerr.New(jerr.TypeError, fmt.Sprintf("field name must be a string, got %s", keyVal.Kind), f.KeyExpr.Span)
		}
		valueNode, hidden := f.Value, f.Hidden
		layer.Fields[keyVal.Str] = FieldDef{Hidden: hidden, Value: func(self, super, dollar *Object) (*Value, error) {
			return Eval(valueNode, c.derive(c.Env, self, super, dollar))
		}}
	}
	for _, a := range n.Asserts {
		condNode, msgNode := a.Cond, a.Msg
		cond := FieldFn(func(self, super, dollar *Object) (*Value, error) {
			return Eval(condNode, c.derive(c.Env, self, super, dollar))
		})
		var msg FieldFn
		if msgNode != nil {
			msg = func(self, super, dollar *Object) (*Value, error) {
				return Eval(msgNode, c.derive(c.Env, self, super, dollar))
			}
		}
		layer.Asserts = append(layer.Asserts, AssertDef{Cond: cond, Msg: msg})
	}
	obj := NewObject(layer)
	if c.Dollar == nil {
		layer.Dollar = obj
	} else {
		layer.Dollar = c.Dollar
	}
	return Obj(obj), nil
}

func evalObjectComp(n *core.Node, c Ctx) (*Value, error) {
	inVal, err := Eval(n.CompIn, c)
	if err != nil {
		return nil, err
	}
	if inVal.Kind != VArr {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("for-expression requires an array, got %s", inVal.Kind), n.Span)
	}
	layer := &Layer{Fields: map[string]FieldDef{}}
	for _, elemThunk := range inVal.Arr {
		elemVal, err := elemThunk.Force()
		if err != nil {
			return nil, err
		}
		env := NewEnv(c.Env)
		env.Bind(n.CompVar, Resolved(elemVal))
		iterCtx := c.withEnv(env)
		if n.CompIf != nil {
			condVal, err := Eval(n.CompIf, iterCtx)
			if err != nil {
				return nil, err
			}
			if condVal.Kind != VBool {
				return nil, jerr.New(jerr.TypeError, "if-expression in comprehension must be boolean", n.Span)
			}
			if !condVal.Bool {
				continue
			}
		}
		keyVal, err := Eval(n.CompKey, iterCtx)
		if err != nil {
			return nil, err
		}
		if keyVal.Kind != VStr {
			return nil, jerr.New(jerr.TypeError, fmt.Sprintf("object comprehension key must be a string, got %s", keyVal.Kind), n.Span)
		}
		valNode := n.CompValue
		valCtx := iterCtx
		layer.Fields[keyVal.Str] = FieldDef{Hidden: n.CompHidden, Value: func(self, super, dollar *Object) (*Value, error) {
			return Eval(valNode, c.derive(valCtx.Env, self, super, dollar))
		}}
	}
	obj := NewObject(layer)
	if c.Dollar == nil {
		layer.Dollar = obj
	} else {
		layer.Dollar = c.Dollar
	}
	return Obj(obj), nil
}

func evalIndex(n *core.Node, c Ctx) (*Value, error) {
	target, err := Eval(n.Target, c)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case VObj:
		keyVal, err := Eval(n.IndexExpr, c)
		if err != nil {
			return nil, err
		}
		if keyVal.Kind != VStr {
			return nil, jerr.New(jerr.TypeError, fmt.Sprintf("object index must be a string, got %s", keyVal.Kind), n.Span)
		}
		thunk, _, ok := target.Obj.FieldThunk(keyVal.Str)
		if !ok {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("object has no field %q", keyVal.Str), n.Span)
		}
		v, err := thunk.Force()
		if err != nil {
			return nil, wrapFrame(err, n.Span)
		}
		return v, nil
	case VArr:
		idxVal, err := Eval(n.IndexExpr, c)
		if err != nil {
			return nil, err
		}
		if idxVal.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, fmt.Sprintf("array index must be a number, got %s", idxVal.Kind), n.Span)
		}
		idx := int(idxVal.Num)
		if idx < 0 || idx >= len(target.Arr) || float64(idx) != idxVal.Num {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("array index %v out of bounds [0,%d)", idxVal.Num, len(target.Arr)), n.Span)
		}
		return target.Arr[idx].Force()
	case VStr:
		idxVal, err := Eval(n.IndexExpr, c)
		if err != nil {
			return nil, err
		}
		if idxVal.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, fmt.Sprintf("string index must be a number, got %s", idxVal.Kind), n.Span)
		}
		runes := []rune(target.Str)
		idx := int(idxVal.Num)
		if idx < 0 || idx >= len(runes) {
			return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("string index %v out of bounds [0,%d)", idxVal.Num, len(runes)), n.Span)
		}
		return Str(string(runes[idx])), nil
	default:
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("cannot index a %s", target.Kind), n.Span)
	}
}

func evalSuperIndex(n *core.Node, c Ctx) (*Value, error) {
	if c.Super == nil {
		return nil, jerr.New(jerr.RuntimeError, "super is not available here", n.Span)
	}
	keyVal, err := Eval(n.IndexExpr, c)
	if err != nil {
		return nil, err
	}
	if keyVal.Kind != VStr {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("object index must be a string, got %s", keyVal.Kind), n.Span)
	}
	thunk, _, ok := c.Super.FieldThunkForSelf(keyVal.Str, c.Self)
	if !ok {
		return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("no such field in super: %q", keyVal.Str), n.Span)
	}
	v, err := thunk.Force()
	if err != nil {
		return nil, wrapFrame(err, n.Span)
	}
	return v, nil
}

func evalInSuper(n *core.Node, c Ctx) (*Value, error) {
	if c.Super == nil {
		return Bool(false), nil
	}
	keyVal, err := Eval(n.IndexExpr, c)
	if err != nil {
		return nil, err
	}
	if keyVal.Kind != VStr {
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("'in super' key must be a string, got %s", keyVal.Kind), n.Span)
	}
	return Bool(c.Super.Has(keyVal.Str)), nil
}

func evalSlice(n *core.Node, c Ctx) (*Value, error) {
	target, err := Eval(n.Target, c)
	if err != nil {
		return nil, err
	}
	length := 0
	switch target.Kind {
	case VArr:
		length = len(target.Arr)
	case VStr:
		length = len([]rune(target.Str))
	default:
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("cannot slice a %s", target.Kind), n.Span)
	}
	low, high, step, err := sliceBounds(n, c, length)
	if err != nil {
		return nil, err
	}
	var idxs []int
	if step > 0 {
		for i := low; i < high; i += step {
			idxs = append(idxs, i)
		}
	} else {
		for i := low; i > high; i += step {
			idxs = append(idxs, i)
		}
	}
	if target.Kind == VArr {
		out := make([]*Thunk, len(idxs))
		for i, idx := range idxs {
			out[i] = target.Arr[idx]
		}
		return Arr(out), nil
	}
	runes := []rune(target.Str)
	out := make([]rune, len(idxs))
	for i, idx := range idxs {
		out[i] = runes[idx]
	}
	return Str(string(out)), nil
}

func sliceBounds(n *core.Node, c Ctx, length int) (low, high, step int, err error) {
	step = 1
	if n.Step != nil {
		v, err := Eval(n.Step, c)
		if err != nil {
			return 0, 0, 0, err
		}
		step = int(v.Num)
		if step == 0 {
			return 0, 0, 0, jerr.New(jerr.RuntimeError, "slice step cannot be 0", n.Span)
		}
	}
	if step > 0 {
		low, high = 0, length
	} else {
		low, high = length-1, -1
	}
	if n.Low != nil {
		v, err := Eval(n.Low, c)
		if err != nil {
			return 0, 0, 0, err
		}
		low = clampIndex(int(v.Num), length)
	}
	if n.High != nil {
		v, err := Eval(n.High, c)
		if err != nil {
			return 0, 0, 0, err
		}
		high = clampIndex(int(v.Num), length)
	}
	return low, high, step, nil
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func evalErrorExpr(n *core.Node, c Ctx) (*Value, error) {
	msgVal, err := Eval(n.Msg, c)
	if err != nil {
		return nil, err
	}
	msg := msgVal.Str
	if msgVal.Kind != VStr {
		msg, err = stringify(msgVal)
		if err != nil {
			return nil, err
		}
	}
	return nil, jerr.New(jerr.RuntimeError, msg, n.Span)
}

func evalUnyOp(n *core.Node, c Ctx) (*Value, error) {
	v, err := Eval(n.Operand, c)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "-":
		if v.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "unary - requires a number", n.Span)
		}
		return Num(-v.Num), nil
	case "+":
		if v.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "unary + requires a number", n.Span)
		}
		return v, nil
	case "!":
		if v.Kind != VBool {
			return nil, jerr.New(jerr.TypeError, "unary ! requires a boolean", n.Span)
		}
		return Bool(!v.Bool), nil
	case "~":
		if v.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "unary ~ requires a number", n.Span)
		}
		return Num(float64(^int64(v.Num))), nil
	default:
		return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("unknown unary operator %q", n.Op), n.Span)
	}
}

func evalBinOp(n *core.Node, c Ctx) (*Value, error) {
	if n.Op == "&&" {
		l, err := Eval(n.Left, c)
		if err != nil {
			return nil, err
		}
		if l.Kind != VBool {
			return nil, jerr.New(jerr.TypeError, "&& requires booleans", n.Span)
		}
		if !l.Bool {
			return Bool(false), nil
		}
		r, err := Eval(n.Right, c)
		if err != nil {
			return nil, err
		}
		if r.Kind != VBool {
			return nil, jerr.New(jerr.TypeError, "&& requires booleans", n.Span)
		}
		return r, nil
	}
	if n.Op == "||" {
		l, err := Eval(n.Left, c)
		if err != nil {
			return nil, err
		}
		if l.Kind != VBool {
			return nil, jerr.New(jerr.TypeError, "|| requires booleans", n.Span)
		}
		if l.Bool {
			return Bool(true), nil
		}
		r, err := Eval(n.Right, c)
		if err != nil {
			return nil, err
		}
		if r.Kind != VBool {
			return nil, jerr.New(jerr.TypeError, "|| requires booleans", n.Span)
		}
		return r, nil
	}

	l, err := Eval(n.Left, c)
	if err != nil {
		return nil, err
	}
	r, err := Eval(n.Right, c)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		eq, err := deepEqual(l, r)
		if err != nil {
			return nil, err
		}
		return Bool(eq), nil
	case "!=":
		eq, err := deepEqual(l, r)
		if err != nil {
			return nil, err
		}
		return Bool(!eq), nil
	case "<", "<=", ">", ">=":
		cmp, err := compareValues(l, r)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "<":
			return Bool(cmp < 0), nil
		case "<=":
			return Bool(cmp <= 0), nil
		case ">":
			return Bool(cmp > 0), nil
		default:
			return Bool(cmp >= 0), nil
		}
	case "in":
		if r.Kind != VObj {
			return nil, jerr.New(jerr.TypeError, "in requires an object on the right", n.Span)
		}
		if l.Kind != VStr {
			return nil, jerr.New(jerr.TypeError, "in requires a string on the left", n.Span)
		}
		return Bool(r.Obj.Has(l.Str)), nil
	case "+":
		return evalPlus(l, r, n.Span)
	case "-":
		if l.Kind != VNum || r.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "- requires numbers", n.Span)
		}
		return Num(l.Num - r.Num), nil
	case "*":
		if l.Kind != VNum || r.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "* requires numbers", n.Span)
		}
		return Num(l.Num * r.Num), nil
	case "/":
		if l.Kind != VNum || r.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "/ requires numbers", n.Span)
		}
		if r.Num == 0 {
			return nil, jerr.New(jerr.RuntimeError, "division by zero", n.Span)
		}
		return Num(l.Num / r.Num), nil
	case "%":
		if l.Kind == VStr {
			return evalFormatOp(l.Str, r, n.Span)
		}
		if l.Kind != VNum || r.Kind != VNum {
			return nil, jerr.New(jerr.TypeError, "%% requires numbers, or a string on the left", n.Span)
		}
		if r.Num == 0 {
			return nil, jerr.New(jerr.RuntimeError, "division by zero", n.Span)
		}
		return Num(math.Mod(l.Num, r.Num)), nil
	case "<<":
		return intBinOp(l, r, n.Span, func(a, b int64) int64 { return a << uint(b) })
	case ">>":
		return intBinOp(l, r, n.Span, func(a, b int64) int64 { return a >> uint(b) })
	case "&":
		return intBinOp(l, r, n.Span, func(a, b int64) int64 { return a & b })
	case "|":
		return intBinOp(l, r, n.Span, func(a, b int64) int64 { return a | b })
	case "^":
		return intBinOp(l, r, n.Span, func(a, b int64) int64 { return a ^ b })
	default:
		return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("unknown binary operator %q", n.Op), n.Span)
	}
}

func intBinOp(l, r *Value, span ast.Span, f func(a, b int64) int64) (*Value, error) {
	if l.Kind != VNum || r.Kind != VNum {
		return nil, jerr.New(jerr.TypeError, "bitwise operators require numbers", span)
	}
	return Num(float64(f(int64(l.Num), int64(r.Num)))), nil
}

func evalPlus(l, r *Value, span ast.Span) (*Value, error) {
	switch {
	case l.Kind == VNum && r.Kind == VNum:
		return Num(l.Num + r.Num), nil
	case l.Kind == VObj && r.Kind == VObj:
		return Obj(Add(l.Obj, r.Obj)), nil
	case l.Kind == VArr && r.Kind == VArr:
		out := make([]*Thunk, 0, len(l.Arr)+len(r.Arr))
		out = append(out, l.Arr...)
		out = append(out, r.Arr...)
		return Arr(out), nil
	case l.Kind == VStr || r.Kind == VStr:
		ls, err := stringify(l)
		if err != nil {
			return nil, err
		}
		rs, err := stringify(r)
		if err != nil {
			return nil, err
		}
		return Str(ls + rs), nil
	default:
		return nil, jerr.New(jerr.TypeError, fmt.Sprintf("cannot add %s and %s", l.Kind, r.Kind), span)
	}
}

// DeepEqual is the exported form of deepEqual, for stdlib natives
// (std.assertEqual, std.sort's default key comparison) that need the
// same structural-equality rule `==` uses.
func DeepEqual(a, b *Value) (bool, error) { return deepEqual(a, b) }

// Compare is the exported form of compareValues, for stdlib natives
// (std.sort, std.max, std.min) that need the same ordering `<` uses.
func Compare(a, b *Value) (int, error) { return compareValues(a, b) }

// deepEqual implements Jsonnet's structural equality: objects compare by
// their visible fields only; comparing a function value with anything is
// a RuntimeError.
func deepEqual(a, b *Value) (bool, error) {
	if a.Kind == VFun || b.Kind == VFun {
		return false, jerr.New(jerr.RuntimeError, "cannot compare function values", ast.Span{})
	}
	if a.Kind != b.Kind {
		return false, nil
	}
	switch a.Kind {
	case VNull:
		return true, nil
	case VBool:
		return a.Bool == b.Bool, nil
	case VNum:
		return a.Num == b.Num, nil
	case VStr:
		return a.Str == b.Str, nil
	case VArr:
		if len(a.Arr) != len(b.Arr) {
			return false, nil
		}
		for i := range a.Arr {
			av, err := a.Arr[i].Force()
			if err != nil {
				return false, err
			}
			bv, err := b.Arr[i].Force()
			if err != nil {
				return false, err
			}
			eq, err := deepEqual(av, bv)
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	case VObj:
		aSet := visibleSet(a.Obj)
		bSet := visibleSet(b.Obj)
		if len(aSet) != len(bSet) {
			return false, nil
		}
		for name := range aSet {
			if !bSet[name] {
				return false, nil
			}
		}
		for name := range aSet {
			at, _, _ := a.Obj.FieldThunk(name)
			bt, _, ok := b.Obj.FieldThunk(name)
			if !ok {
				return false, nil
			}
			av, err := at.Force()
			if err != nil {
				return false, err
			}
			bv, err := bt.Force()
			if err != nil {
				return false, err
			}
			eq, err := deepEqual(av, bv)
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

func visibleSet(o *Object) map[string]bool {
	out := map[string]bool{}
	for _, name := range o.VisibleFields() {
		if o.hiddenOf(name) != ast.Hidden {
			out[name] = true
		}
	}
	return out
}

// compareValues orders two values for <, <=, >, >=: numbers and strings
// order natively, arrays order lexicographically by recursively
// comparing elements, everything else is a type error.
func compareValues(a, b *Value) (int, error) {
	if a.Kind != b.Kind {
		return 0, jerr.New(jerr.TypeError, fmt.Sprintf("cannot compare %s and %s", a.Kind, b.Kind), ast.Span{})
	}
	switch a.Kind {
	case VNum:
		switch {
		case a.Num < b.Num:
			return -1, nil
		case a.Num > b.Num:
			return 1, nil
		default:
			return 0, nil
		}
	case VStr:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		default:
			return 0, nil
		}
	case VArr:
		for i := 0; i < len(a.Arr) && i < len(b.Arr); i++ {
			av, err := a.Arr[i].Force()
			if err != nil {
				return 0, err
			}
			bv, err := b.Arr[i].Force()
			if err != nil {
				return 0, err
			}
			cmp, err := compareValues(av, bv)
			if err != nil {
				return 0, err
			}
			if cmp != 0 {
				return cmp, nil
			}
		}
		switch {
		case len(a.Arr) < len(b.Arr):
			return -1, nil
		case len(a.Arr) > len(b.Arr):
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, jerr.New(jerr.TypeError, fmt.Sprintf("%s is not ordered", a.Kind), ast.Span{})
	}
}

// SortedVisibleFields is a small convenience used by manifest/ and
// stdlib/: VisibleFields in chain-encounter order, which manifestation
// needs sorted for deterministic JSON key order.
func SortedVisibleFields(o *Object) []string {
	names := o.VisibleFields()
	sort.Strings(names)
	return names
}
