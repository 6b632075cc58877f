package core

import (
	"testing"

	"github.com/fabvit86/jsonnet-go/ast"
)

func TestDesugarLiterals(t *testing.T) {
	for _, test := range []struct {
		name string
		in   *ast.Node
		kind Kind
	}{
		{"null", &ast.Node{Kind: ast.Null}, NullLit},
		{"bool", &ast.Node{Kind: ast.Bool, Bool: true}, BoolLit},
		{"number", &ast.Node{Kind: ast.Number, Num: 3, IsInt: true}, NumLit},
		{"string", &ast.Node{Kind: ast.Str, Str: "hi"}, StrLit},
		{"ident", &ast.Node{Kind: ast.Ident, Name: "x"}, Var},
		{"self", &ast.Node{Kind: ast.Self}, Self},
		{"dollar", &ast.Node{Kind: ast.Dollar}, Dollar},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := Desugar(test.in)
			if got.Kind != test.kind {
				t.Errorf("Desugar(%s).Kind = %v, want %v", test.name, got.Kind, test.kind)
			}
		})
	}
}

func TestDesugarNumberPreservesValueAndIsInt(t *testing.T) {
	got := Desugar(&ast.Node{Kind: ast.Number, Num: 2.5, IsInt: false})
	if got.Num != 2.5 || got.IsInt {
		t.Errorf("got Num=%v IsInt=%v, want Num=2.5 IsInt=false", got.Num, got.IsInt)
	}
}

func TestDesugarIfMissingElseBecomesNull(t *testing.T) {
	in := &ast.Node{
		Kind: ast.If,
		Cond: &ast.Node{Kind: ast.Bool, Bool: true},
		Then: &ast.Node{Kind: ast.Number, Num: 1},
		Else: nil,
	}
	got := Desugar(in)
	if got.Kind != If {
		t.Fatalf("got Kind = %v, want If", got.Kind)
	}
	if got.Else == nil || got.Else.Kind != NullLit {
		t.Errorf("got Else = %+v, want a NullLit", got.Else)
	}
}

func TestDesugarIfWithElsePreservesIt(t *testing.T) {
	in := &ast.Node{
		Kind: ast.If,
		Cond: &ast.Node{Kind: ast.Bool, Bool: true},
		Then: &ast.Node{Kind: ast.Number, Num: 1},
		Else: &ast.Node{Kind: ast.Number, Num: 2},
	}
	got := Desugar(in)
	if got.Else.Kind != NumLit || got.Else.Num != 2 {
		t.Errorf("got Else = %+v, want NumLit(2)", got.Else)
	}
}

func TestDesugarAssertWithMessageBecomesIfThenElseError(t *testing.T) {
	in := &ast.Node{
		Kind:      ast.Assert,
		Cond:      &ast.Node{Kind: ast.Bool, Bool: true},
		AssertMsg: &ast.Node{Kind: ast.Str, Str: "custom message"},
		Rest:      &ast.Node{Kind: ast.Number, Num: 1},
	}
	got := Desugar(in)
	if got.Kind != If {
		t.Fatalf("got Kind = %v, want If", got.Kind)
	}
	if got.Then.Kind != NumLit {
		t.Errorf("got Then.Kind = %v, want NumLit", got.Then.Kind)
	}
	if got.Else.Kind != ErrorExpr {
		t.Fatalf("got Else.Kind = %v, want ErrorExpr", got.Else.Kind)
	}
	if got.Else.Msg.Kind != StrLit || got.Else.Msg.Str != "custom message" {
		t.Errorf("got Else.Msg = %+v, want StrLit(custom message)", got.Else.Msg)
	}
}

func TestDesugarAssertWithoutMessageUsesDefault(t *testing.T) {
	in := &ast.Node{
		Kind: ast.Assert,
		Cond: &ast.Node{Kind: ast.Bool, Bool: true},
		Rest: &ast.Node{Kind: ast.Number, Num: 1},
	}
	got := Desugar(in)
	if got.Else.Msg.Str != "assertion failed" {
		t.Errorf("got default message %q, want %q", got.Else.Msg.Str, "assertion failed")
	}
}

func TestDesugarImportIsTransparent(t *testing.T) {
	in := &ast.Node{
		Kind:     ast.Import,
		Path:     "lib.libsonnet",
		Imported: &ast.Node{Kind: ast.Number, Num: 42},
	}
	got := Desugar(in)
	if got.Kind != NumLit || got.Num != 42 {
		t.Errorf("got %+v, want the imported file's own desugared form", got)
	}
}

func TestDesugarImportStrBecomesStringLiteral(t *testing.T) {
	in := &ast.Node{Kind: ast.ImportStr, Path: "data.txt", ImportedStr: "file contents"}
	got := Desugar(in)
	if got.Kind != StrLit || got.Str != "file contents" {
		t.Errorf("got %+v, want StrLit(file contents)", got)
	}
}

func TestDesugarSuperFieldAndIndex(t *testing.T) {
	fld := Desugar(&ast.Node{Kind: ast.SuperFld, FieldName: "f"})
	if fld.Kind != SuperIndex || fld.IndexExpr.Kind != StrLit || fld.IndexExpr.Str != "f" {
		t.Errorf("super.f desugared to %+v", fld)
	}

	idx := Desugar(&ast.Node{Kind: ast.SuperIdx, IndexExpr: &ast.Node{Kind: ast.Str, Str: "g"}})
	if idx.Kind != SuperIndex || idx.IndexExpr.Str != "g" {
		t.Errorf("super[e] desugared to %+v", idx)
	}

	inSuper := Desugar(&ast.Node{Kind: ast.InSuper, IndexExpr: &ast.Node{Kind: ast.Str, Str: "h"}})
	if inSuper.Kind != InSuper || inSuper.IndexExpr.Str != "h" {
		t.Errorf("e in super desugared to %+v", inSuper)
	}
}

func TestDesugarLookupAndIndex(t *testing.T) {
	lookup := Desugar(&ast.Node{
		Kind:      ast.Lookup,
		Target:    &ast.Node{Kind: ast.Ident, Name: "a"},
		FieldName: "b",
	})
	if lookup.Kind != Index || lookup.IndexExpr.Kind != StrLit || lookup.IndexExpr.Str != "b" {
		t.Errorf("a.b desugared to %+v", lookup)
	}

	index := Desugar(&ast.Node{
		Kind:      ast.Index,
		Target:    &ast.Node{Kind: ast.Ident, Name: "a"},
		IndexExpr: &ast.Node{Kind: ast.Str, Str: "b"},
	})
	if index.Kind != Index || index.IndexExpr.Kind != StrLit {
		t.Errorf("a[b] desugared to %+v", index)
	}
}

func TestDesugarObjectLiteralWithHiddenFieldAndLocal(t *testing.T) {
	in := &ast.Node{
		Kind: ast.Object,
		Fields: []ast.Field{
			{Kind: ast.FieldLocal, LocalName: "x", Value: &ast.Node{Kind: ast.Number, Num: 1}},
			{Kind: ast.FieldPlain, HasLiteral: true, KeyLiteral: "a", Hidden: ast.Hidden, Value: &ast.Node{Kind: ast.Ident, Name: "x"}},
			{Kind: ast.FieldAssert, Value: &ast.Node{Kind: ast.Bool, Bool: true}},
		},
	}
	got := Desugar(in)
	if got.Kind != ObjectLit {
		t.Fatalf("got Kind = %v, want ObjectLit", got.Kind)
	}
	if len(got.Fields) != 1 {
		t.Fatalf("got %d fields, want 1 (local is not a field)", len(got.Fields))
	}
	f := got.Fields[0]
	if f.Hidden != ast.Hidden {
		t.Errorf("got Hidden = %v, want ast.Hidden", f.Hidden)
	}
	if f.KeyExpr.Kind != StrLit || f.KeyExpr.Str != "a" {
		t.Errorf("got KeyExpr = %+v, want StrLit(a)", f.KeyExpr)
	}
	// the field value must be wrapped in a Let binding x, since it's an
	// object-scoped local rather than a distinct Core form.
	if f.Value.Kind != Let {
		t.Fatalf("got field Value.Kind = %v, want Let (object-local wrapping)", f.Value.Kind)
	}
	if len(f.Value.Binds) != 1 || f.Value.Binds[0].Name != "x" {
		t.Errorf("got Binds = %+v, want [x]", f.Value.Binds)
	}
	if len(got.Asserts) != 1 {
		t.Fatalf("got %d asserts, want 1", len(got.Asserts))
	}
	if got.Asserts[0].Cond.Kind != Let {
		t.Errorf("assert cond should also be wrapped in the object-local Let")
	}
}

func TestDesugarObjectComprehensionWrapsKeyAndValueInLocals(t *testing.T) {
	in := &ast.Node{
		Kind:   ast.Object,
		IsComp: true,
		CompLocals: []ast.Bind{
			{Name: "y", Value: &ast.Node{Kind: ast.Number, Num: 2}},
		},
		CompKey:   &ast.Node{Kind: ast.Ident, Name: "y"},
		CompValue: &ast.Node{Kind: ast.Ident, Name: "y"},
		CompVar:   "item",
		CompIn:    &ast.Node{Kind: ast.Ident, Name: "xs"},
	}
	got := Desugar(in)
	if got.Kind != ObjectComp {
		t.Fatalf("got Kind = %v, want ObjectComp", got.Kind)
	}
	if got.CompKey.Kind != Let || got.CompValue.Kind != Let {
		t.Errorf("CompKey/CompValue should be wrapped in the comprehension's Let, got %+v / %+v", got.CompKey, got.CompValue)
	}
	if got.CompVar != "item" {
		t.Errorf("got CompVar = %q, want item", got.CompVar)
	}
}

func TestDesugarArrayLiteralAndComprehension(t *testing.T) {
	lit := Desugar(&ast.Node{
		Kind:     ast.Array,
		Elements: []*ast.Node{{Kind: ast.Number, Num: 1}, {Kind: ast.Number, Num: 2}},
	})
	if lit.Kind != ArrayLit || len(lit.Elements) != 2 {
		t.Errorf("got %+v, want a 2-element ArrayLit", lit)
	}

	comp := Desugar(&ast.Node{
		Kind:      ast.Array,
		IsComp:    true,
		CompValue: &ast.Node{Kind: ast.Ident, Name: "x"},
		CompVar:   "x",
		CompIn:    &ast.Node{Kind: ast.Ident, Name: "xs"},
	})
	if comp.Kind != ArrayComp || comp.CompVar != "x" {
		t.Errorf("got %+v, want an ArrayComp over x", comp)
	}
}

func TestDesugarFuncAndApply(t *testing.T) {
	fn := Desugar(&ast.Node{
		Kind: ast.Func,
		Params: []ast.Param{
			{Name: "a"},
			{Name: "b", Default: &ast.Node{Kind: ast.Number, Num: 1}},
		},
		Body: &ast.Node{Kind: ast.Ident, Name: "a"},
	})
	if fn.Kind != Func || len(fn.Params) != 2 {
		t.Fatalf("got %+v, want a 2-param Func", fn)
	}
	if fn.Params[0].Default != nil {
		t.Errorf("required param got a Default")
	}
	if fn.Params[1].Default == nil || fn.Params[1].Default.Num != 1 {
		t.Errorf("got Params[1].Default = %+v, want NumLit(1)", fn.Params[1].Default)
	}

	apply := Desugar(&ast.Node{
		Kind:       ast.Apply,
		Target:     &ast.Node{Kind: ast.Ident, Name: "f"},
		Args:       []ast.Arg{{Value: &ast.Node{Kind: ast.Number, Num: 1}}, {Name: "b", Value: &ast.Node{Kind: ast.Number, Num: 2}}},
		TailStrict: true,
	})
	if apply.Kind != Apply || !apply.TailStrict || len(apply.Args) != 2 {
		t.Fatalf("got %+v, want a 2-arg tail-strict Apply", apply)
	}
	if apply.Args[1].Name != "b" {
		t.Errorf("got Args[1].Name = %q, want b", apply.Args[1].Name)
	}
}

func TestDesugarLocalFunctionSugarKeepsFuncAsBindValue(t *testing.T) {
	// The parser itself desugars `local f(x) = e` into a Bind whose Value
	// is already an ast.Func node; core.Desugar only needs to walk that
	// Value like any other Bind, never consult Bind.Params.
	in := &ast.Node{
		Kind: ast.Local,
		Binds: []ast.Bind{
			{Name: "f", Params: []ast.Param{{Name: "x"}}, Value: &ast.Node{
				Kind:   ast.Func,
				Params: []ast.Param{{Name: "x"}},
				Body:   &ast.Node{Kind: ast.Ident, Name: "x"},
			}},
		},
		Body: &ast.Node{Kind: ast.Ident, Name: "f"},
	}
	got := Desugar(in)
	if got.Kind != Let || len(got.Binds) != 1 {
		t.Fatalf("got %+v, want a 1-bind Let", got)
	}
	if got.Binds[0].Value.Kind != Func {
		t.Errorf("got Binds[0].Value.Kind = %v, want Func", got.Binds[0].Value.Kind)
	}
}

func TestDesugarNilIsNil(t *testing.T) {
	if Desugar(nil) != nil {
		t.Errorf("Desugar(nil) should return nil")
	}
}

func TestDesugarUnhandledKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for an unhandled ast.Kind")
		}
	}()
	Desugar(&ast.Node{Kind: ast.Kind(999)})
}
