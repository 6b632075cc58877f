package eval

import (
	"testing"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/core"
	"github.com/fabvit86/jsonnet-go/internal/econf"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
)

func rootCtx() Ctx {
	return NewRootCtx(NewEnv(nil), econf.Default())
}

func numLit(n float64) *core.Node { return &core.Node{Kind: core.NumLit, Num: n} }
func strLit(s string) *core.Node  { return &core.Node{Kind: core.StrLit, Str: s} }
func boolLit(b bool) *core.Node   { return &core.Node{Kind: core.BoolLit, Bool: b} }
func varNode(name string) *core.Node { return &core.Node{Kind: core.Var, Name: name} }

func binOp(op string, l, r *core.Node) *core.Node {
	return &core.Node{Kind: core.BinOp, Op: op, Left: l, Right: r}
}

func mustEval(t *testing.T, n *core.Node, c Ctx) *Value {
	t.Helper()
	v, err := Eval(n, c)
	if err != nil {
		t.Fatalf("Eval(%+v) error: %v", n, err)
	}
	return v
}

func TestEvalBinOpArithmetic(t *testing.T) {
	for _, test := range []struct {
		name    string
		op      string
		l, r    *core.Node
		wantNum float64
	}{
		{"add", "+", numLit(1), numLit(2), 3},
		{"sub", "-", numLit(5), numLit(2), 3},
		{"mul", "*", numLit(3), numLit(4), 12},
		{"div", "/", numLit(9), numLit(2), 4.5},
		{"mod", "%", numLit(9), numLit(4), 1},
	} {
		t.Run(test.name, func(t *testing.T) {
			v := mustEval(t, binOp(test.op, test.l, test.r), rootCtx())
			if v.Kind != VNum || v.Num != test.wantNum {
				t.Errorf("got %+v, want Num(%v)", v, test.wantNum)
			}
		})
	}
}

func TestEvalBinOpStringConcat(t *testing.T) {
	v := mustEval(t, binOp("+", strLit("foo"), strLit("bar")), rootCtx())
	if v.Kind != VStr || v.Str != "foobar" {
		t.Errorf("got %+v, want Str(foobar)", v)
	}
}

func TestEvalBinOpStringCoercion(t *testing.T) {
	// "n=" + 5 stringifies the number operand rather than erroring.
	v := mustEval(t, binOp("+", strLit("n="), numLit(5)), rootCtx())
	if v.Kind != VStr || v.Str != "n=5" {
		t.Errorf("got %+v, want Str(n=5)", v)
	}
}

func TestEvalBinOpComparisons(t *testing.T) {
	for _, test := range []struct {
		op   string
		want bool
	}{
		{"<", true}, {"<=", true}, {">", false}, {">=", false}, {"==", false}, {"!=", true},
	} {
		t.Run(test.op, func(t *testing.T) {
			v := mustEval(t, binOp(test.op, numLit(1), numLit(2)), rootCtx())
			if v.Kind != VBool || v.Bool != test.want {
				t.Errorf("1 %s 2 = %+v, want Bool(%v)", test.op, v, test.want)
			}
		})
	}
}

func TestEvalBinOpDivisionByZero(t *testing.T) {
	_, err := Eval(binOp("/", numLit(1), numLit(0)), rootCtx())
	je, ok := err.(*jerr.Error)
	if !ok || je.Kind != jerr.RuntimeError {
		t.Fatalf("got err = %v, want RuntimeError", err)
	}
}

func TestEvalBinOpShortCircuit(t *testing.T) {
	// false && error "boom" must not evaluate the right operand.
	errNode := &core.Node{Kind: core.ErrorExpr, Msg: strLit("boom")}
	v := mustEval(t, binOp("&&", boolLit(false), errNode), rootCtx())
	if v.Kind != VBool || v.Bool != false {
		t.Errorf("got %+v, want Bool(false)", v)
	}

	v = mustEval(t, binOp("||", boolLit(true), errNode), rootCtx())
	if v.Kind != VBool || v.Bool != true {
		t.Errorf("got %+v, want Bool(true)", v)
	}
}

func TestEvalSlice(t *testing.T) {
	elems := []*core.Node{numLit(0), numLit(1), numLit(2), numLit(3), numLit(4)}
	arrNode := &core.Node{Kind: core.ArrayLit, Elements: elems}

	for _, test := range []struct {
		name     string
		low, high, step *core.Node
		want     []float64
	}{
		{"basic range", numLit(1), numLit(3), nil, []float64{1, 2}},
		{"open low", nil, numLit(2), nil, []float64{0, 1}},
		{"open high", numLit(3), nil, nil, []float64{3, 4}},
		{"step", nil, nil, numLit(2), []float64{0, 2, 4}},
	} {
		t.Run(test.name, func(t *testing.T) {
			n := &core.Node{Kind: core.Slice, Target: arrNode, Low: test.low, High: test.high, Step: test.step}
			v := mustEval(t, n, rootCtx())
			if v.Kind != VArr || len(v.Arr) != len(test.want) {
				t.Fatalf("got %+v, want array of length %d", v, len(test.want))
			}
			for i, th := range v.Arr {
				ev, err := th.Force()
				if err != nil {
					t.Fatalf("Force() error: %v", err)
				}
				if ev.Num != test.want[i] {
					t.Errorf("index %d: got %v, want %v", i, ev.Num, test.want[i])
				}
			}
		})
	}
}

func TestEvalSliceOfString(t *testing.T) {
	n := &core.Node{Kind: core.Slice, Target: strLit("hello"), Low: numLit(1), High: numLit(4)}
	v := mustEval(t, n, rootCtx())
	if v.Kind != VStr || v.Str != "ell" {
		t.Errorf("got %+v, want Str(ell)", v)
	}
}

func TestEvalSliceStepZeroIsError(t *testing.T) {
	n := &core.Node{Kind: core.Slice, Target: strLit("hello"), Step: numLit(0)}
	_, err := Eval(n, rootCtx())
	je, ok := err.(*jerr.Error)
	if !ok || je.Kind != jerr.RuntimeError {
		t.Fatalf("got err = %v, want RuntimeError", err)
	}
}

// objectField builds a Core ObjectLit field with a constant string key.
func objectField(name string, hidden ast.Hiddenness, value *core.Node) core.Field {
	return core.Field{KeyExpr: strLit(name), Hidden: hidden, Value: value}
}

func TestStringifyEscapesControlCharacters(t *testing.T) {
	// A top-level string passes through Stringify unchanged; escaping
	// applies to strings rendered inside a JSON-ish container.
	s, err := Stringify(Arr([]*Thunk{Resolved(Str("a\x01b"))}))
	if err != nil {
		t.Fatalf("Stringify error: %v", err)
	}
	want := "[\"a\\u0001b\"]"
	if s != want {
		t.Errorf("got %q, want %q (control byte must be u-escaped, not written raw)", s, want)
	}
}

func TestEvalObjectLit(t *testing.T) {
	n := &core.Node{
		Kind: core.ObjectLit,
		Fields: []core.Field{
			objectField("a", ast.Visible, numLit(1)),
			objectField("b", ast.Hidden, numLit(2)),
		},
	}
	v := mustEval(t, n, rootCtx())
	if v.Kind != VObj {
		t.Fatalf("got %+v, want an object", v)
	}
	thunk, hidden, ok := v.Obj.FieldThunk("a")
	if !ok || hidden != ast.Visible {
		t.Fatalf("got field a hidden=%v ok=%v, want Visible, true", hidden, ok)
	}
	av, err := thunk.Force()
	if err != nil || av.Num != 1 {
		t.Errorf("got a = %+v (err %v), want Num(1)", av, err)
	}
	_, hidden, ok = v.Obj.FieldThunk("b")
	if !ok || hidden != ast.Hidden {
		t.Errorf("got field b hidden=%v ok=%v, want Hidden, true", hidden, ok)
	}
}

func TestEvalObjectComp(t *testing.T) {
	// { [x]: x + x for x in ["a", "b"] }
	inNode := &core.Node{Kind: core.ArrayLit, Elements: []*core.Node{strLit("a"), strLit("b")}}
	n := &core.Node{
		Kind:      core.ObjectComp,
		CompKey:   varNode("x"),
		CompValue: binOp("+", varNode("x"), varNode("x")),
		CompVar:   "x",
		CompIn:    inNode,
	}
	v := mustEval(t, n, rootCtx())
	if v.Kind != VObj {
		t.Fatalf("got %+v, want an object", v)
	}
	for _, test := range []struct{ key, want string }{{"a", "aa"}, {"b", "bb"}} {
		thunk, _, ok := v.Obj.FieldThunk(test.key)
		if !ok {
			t.Fatalf("missing field %q", test.key)
		}
		fv, err := thunk.Force()
		if err != nil {
			t.Fatalf("Force() error: %v", err)
		}
		if fv.Str != test.want {
			t.Errorf("field %q = %q, want %q", test.key, fv.Str, test.want)
		}
	}
}

func TestEvalObjectCompWithIfFilter(t *testing.T) {
	inNode := &core.Node{Kind: core.ArrayLit, Elements: []*core.Node{numLit(1), numLit(2), numLit(3)}}
	n := &core.Node{
		Kind:      core.ObjectComp,
		CompKey:   binOp("+", strLit(""), varNode("x")),
		CompValue: varNode("x"),
		CompVar:   "x",
		CompIn:    inNode,
		CompIf:    binOp(">", varNode("x"), numLit(1)),
	}
	v := mustEval(t, n, rootCtx())
	if v.Kind != VObj {
		t.Fatalf("got %+v, want an object", v)
	}
	if v.Obj.Has("1") {
		t.Errorf("filtered-out key \"1\" should not be present")
	}
	if !v.Obj.Has("2") || !v.Obj.Has("3") {
		t.Errorf("expected keys 2 and 3 to be present")
	}
}

func TestDeepEqualScalarsAndArrays(t *testing.T) {
	for _, test := range []struct {
		name string
		a, b *Value
		want bool
	}{
		{"equal numbers", Num(1), Num(1), true},
		{"unequal numbers", Num(1), Num(2), false},
		{"equal strings", Str("x"), Str("x"), true},
		{"different kinds", Num(1), Str("1"), false},
		{"equal arrays", Arr([]*Thunk{Resolved(Num(1)), Resolved(Num(2))}), Arr([]*Thunk{Resolved(Num(1)), Resolved(Num(2))}), true},
		{"unequal length arrays", Arr([]*Thunk{Resolved(Num(1))}), Arr([]*Thunk{Resolved(Num(1)), Resolved(Num(2))}), false},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := deepEqual(test.a, test.b)
			if err != nil {
				t.Fatalf("deepEqual error: %v", err)
			}
			if got != test.want {
				t.Errorf("deepEqual(%+v, %+v) = %v, want %v", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestDeepEqualFunctionIsAlwaysAnError(t *testing.T) {
	fn := Fun(&Function{})
	_, err := deepEqual(fn, fn)
	je, ok := err.(*jerr.Error)
	if !ok || je.Kind != jerr.RuntimeError {
		t.Fatalf("got err = %v, want RuntimeError", err)
	}
}

func TestDeepEqualObjectIgnoresHiddenFields(t *testing.T) {
	a := objWithFields(map[string]fieldSpec{
		"x": {ast.Visible, Num(1)},
		"y": {ast.Hidden, Num(99)},
	})
	b := objWithFields(map[string]fieldSpec{
		"x": {ast.Visible, Num(1)},
	})
	eq, err := deepEqual(Obj(a), Obj(b))
	if err != nil {
		t.Fatalf("deepEqual error: %v", err)
	}
	if !eq {
		t.Errorf("objects differing only in a hidden field should compare equal")
	}
}

func TestCompareValuesNumbersAndStrings(t *testing.T) {
	for _, test := range []struct {
		name string
		a, b *Value
		want int
	}{
		{"less", Num(1), Num(2), -1},
		{"greater", Num(2), Num(1), 1},
		{"equal", Num(1), Num(1), 0},
		{"string less", Str("a"), Str("b"), -1},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := compareValues(test.a, test.b)
			if err != nil {
				t.Fatalf("compareValues error: %v", err)
			}
			if got != test.want {
				t.Errorf("compareValues(%+v, %+v) = %d, want %d", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestCompareValuesArraysLexicographic(t *testing.T) {
	a := Arr([]*Thunk{Resolved(Num(1)), Resolved(Num(2))})
	b := Arr([]*Thunk{Resolved(Num(1)), Resolved(Num(3))})
	got, err := compareValues(a, b)
	if err != nil {
		t.Fatalf("compareValues error: %v", err)
	}
	if got != -1 {
		t.Errorf("got %d, want -1", got)
	}

	// A strict prefix sorts before the longer array.
	prefix := Arr([]*Thunk{Resolved(Num(1))})
	got, err = compareValues(prefix, a)
	if err != nil {
		t.Fatalf("compareValues error: %v", err)
	}
	if got != -1 {
		t.Errorf("got %d, want -1 (prefix sorts first)", got)
	}
}

func TestCompareValuesMismatchedKindsIsError(t *testing.T) {
	_, err := compareValues(Num(1), Str("1"))
	je, ok := err.(*jerr.Error)
	if !ok || je.Kind != jerr.TypeError {
		t.Fatalf("got err = %v, want TypeError", err)
	}
}

// fieldSpec is a small test-local helper describing one field of a Layer.
type fieldSpec struct {
	hidden ast.Hiddenness
	value  *Value
}

func objWithFields(fields map[string]fieldSpec) *Object {
	layer := &Layer{Fields: map[string]FieldDef{}}
	for name, spec := range fields {
		v := spec.value
		layer.Fields[name] = FieldDef{Hidden: spec.hidden, Value: func(self, super, dollar *Object) (*Value, error) {
			return v, nil
		}}
	}
	return NewObject(layer)
}

func TestObjectAddOverridesLeftWithRight(t *testing.T) {
	left := objWithFields(map[string]fieldSpec{"a": {ast.Visible, Num(1)}})
	right := objWithFields(map[string]fieldSpec{"a": {ast.Visible, Num(2)}, "b": {ast.Visible, Num(3)}})

	merged := Add(left, right)
	thunk, _, ok := merged.FieldThunk("a")
	if !ok {
		t.Fatalf("merged object missing field a")
	}
	v, err := thunk.Force()
	if err != nil {
		t.Fatalf("Force() error: %v", err)
	}
	if v.Num != 2 {
		t.Errorf("got a = %v, want 2 (right wins)", v.Num)
	}
	if !merged.Has("b") {
		t.Errorf("merged object should still have field b from right")
	}
}

func TestObjectAddNestedComposition(t *testing.T) {
	// left + (x + y): right's chain is already [y, x], so the merged
	// chain must end up [y, x, left], i.e. y wins over x wins over left.
	left := objWithFields(map[string]fieldSpec{"a": {ast.Visible, Num(0)}})
	x := objWithFields(map[string]fieldSpec{"a": {ast.Visible, Num(1)}})
	y := objWithFields(map[string]fieldSpec{"a": {ast.Visible, Num(2)}})
	xy := Add(x, y)
	merged := Add(left, xy)

	if len(merged.Chain) != 3 {
		t.Fatalf("got chain length %d, want 3", len(merged.Chain))
	}
	thunk, _, _ := merged.FieldThunk("a")
	v, _ := thunk.Force()
	if v.Num != 2 {
		t.Errorf("got a = %v, want 2 (y, the most derived, should win)", v.Num)
	}
}

func TestHiddenOfMergesAcrossChain(t *testing.T) {
	// Base layer hides the field; a derived plain re-declaration must not
	// reset it back to visible.
	base := objWithFields(map[string]fieldSpec{"secret": {ast.Hidden, Num(1)}})
	derived := objWithFields(map[string]fieldSpec{"secret": {ast.Visible, Num(2)}})
	merged := Add(base, derived)

	_, hidden, ok := merged.FieldThunk("secret")
	if !ok {
		t.Fatalf("merged object missing field secret")
	}
	if hidden != ast.Hidden {
		t.Errorf("got hiddenness %v, want Hidden (base's :: must survive a plain override)", hidden)
	}
}

func TestHiddenOfForcedVisibleOverridesHidden(t *testing.T) {
	base := objWithFields(map[string]fieldSpec{"secret": {ast.Hidden, Num(1)}})
	derived := objWithFields(map[string]fieldSpec{"secret": {ast.ForcedVisible, Num(2)}})
	merged := Add(base, derived)

	_, hidden, _ := merged.FieldThunk("secret")
	if hidden != ast.Visible {
		t.Errorf("got hiddenness %v, want Visible (::: must force visibility even over a hidden base)", hidden)
	}
}

// TestEvalLetSelfReferenceIsInfiniteLoop exercises the cycle-detection
// mechanism a self-referential binding hits: local x = x; x forces the
// same thunk while it is already being forced.
func TestEvalLetSelfReferenceIsInfiniteLoop(t *testing.T) {
	n := &core.Node{
		Kind:  core.Let,
		Binds: []core.Bind{{Name: "x", Value: varNode("x")}},
		Body:  varNode("x"),
	}
	_, err := Eval(n, rootCtx())
	je, ok := err.(*jerr.Error)
	if !ok {
		t.Fatalf("got err of type %T, want *jerr.Error", err)
	}
	if je.Kind != jerr.InfiniteLoop {
		t.Errorf("got Kind = %v, want InfiniteLoop", je.Kind)
	}
}

// TestEvalLetMutualSelfReferenceIsInfiniteLoop covers the same mechanism
// for a pair of bindings that reference each other with no base case.
func TestEvalLetMutualSelfReferenceIsInfiniteLoop(t *testing.T) {
	n := &core.Node{
		Kind: core.Let,
		Binds: []core.Bind{
			{Name: "x", Value: varNode("y")},
			{Name: "y", Value: varNode("x")},
		},
		Body: varNode("x"),
	}
	_, err := Eval(n, rootCtx())
	je, ok := err.(*jerr.Error)
	if !ok || je.Kind != jerr.InfiniteLoop {
		t.Fatalf("got err = %v, want InfiniteLoop", err)
	}
}

// TestThunkMemoizationForcesComputeOnce binds a name to a thunk whose
// compute closure increments a counter, then evaluates a Core graph that
// references the name three times. The counter must still read 1: a
// Thunk forces its compute at most once and caches the result for every
// subsequent reference.
func TestThunkMemoizationForcesComputeOnce(t *testing.T) {
	calls := 0
	env := NewEnv(nil)
	env.Bind("shared", NewThunk(ast.Span{}, func() (*Value, error) {
		calls++
		return Num(42), nil
	}))
	c := NewRootCtx(env, econf.Default())

	// shared + shared + shared references the same binding three times.
	n := binOp("+", binOp("+", varNode("shared"), varNode("shared")), varNode("shared"))
	v := mustEval(t, n, c)
	if v.Num != 126 {
		t.Fatalf("got %v, want 126", v.Num)
	}
	if calls != 1 {
		t.Errorf("got %d calls to the thunk's compute, want exactly 1", calls)
	}
}

// TestThunkMemoizationAcrossFunctionCalls proves the same invariant for a
// host-injected function invoked through Call more than once, whose body
// forces a thunk from its closure Env twice per call.
func TestThunkMemoizationAcrossFunctionCalls(t *testing.T) {
	calls := 0
	argThunk := NewThunk(ast.Span{}, func() (*Value, error) {
		calls++
		return Num(10), nil
	})
	env := NewEnv(nil)
	env.Bind("a", argThunk)
	fn := &Function{
		Params: []Param{{Name: "unused"}},
		Body: func(callEnv *Env, self, super, dollar *Object) (*Value, error) {
			t, _ := callEnv.Lookup("a")
			v1, err := t.Force()
			if err != nil {
				return nil, err
			}
			v2, err := t.Force()
			if err != nil {
				return nil, err
			}
			return Num(v1.Num + v2.Num), nil
		},
		Env: env,
	}
	for i := 0; i < 2; i++ {
		v, err := Call(fn, []*Value{Num(0)})
		if err != nil {
			t.Fatalf("Call error: %v", err)
		}
		if v.Num != 20 {
			t.Errorf("got %v, want 20", v.Num)
		}
	}
	if calls != 1 {
		t.Errorf("got %d calls to the argument thunk's compute, want exactly 1", calls)
	}
}
