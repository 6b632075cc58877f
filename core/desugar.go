package core

import "github.com/fabvit86/jsonnet-go/ast"

// Desugar lowers a surface ast.Node into its Core equivalent. It never
// fails: every surface form the parser produces has a total mapping
// here, so errors from this point on are all evaluation-time.
func Desugar(n *ast.Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.Null:
		return NullNode(n.Span)
	case ast.Bool:
		return &Node{Kind: BoolLit, Bool: n.Bool, Span: n.Span}
	case ast.Number:
		return &Node{Kind: NumLit, Num: n.Num, IsInt: n.IsInt, Span: n.Span}
	case ast.Str:
		return StrNode(n.Span, n.Str)
	case ast.Ident:
		return &Node{Kind: Var, Name: n.Name, Span: n.Span}
	case ast.Self:
		return &Node{Kind: Self, Span: n.Span}
	case ast.Dollar:
		return &Node{Kind: Dollar, Span: n.Span}
	case ast.Array:
		return desugarArray(n)
	case ast.Object:
		return desugarObject(n)
	case ast.Lookup:
		return &Node{Kind: Index, Target: Desugar(n.Target), IndexExpr: StrNode(n.Span, n.FieldName), Span: n.Span}
	case ast.Index:
		return &Node{Kind: Index, Target: Desugar(n.Target), IndexExpr: Desugar(n.IndexExpr), Span: n.Span}
	case ast.Slice:
		return &Node{
			Kind: Slice, Target: Desugar(n.Target),
			Low: Desugar(n.Low), High: Desugar(n.High), Step: Desugar(n.Step),
			Span: n.Span,
		}
	case ast.Apply:
		return &Node{Kind: Apply, Target: Desugar(n.Target), Args: desugarArgs(n.Args), TailStrict: n.TailStrict, Span: n.Span}
	case ast.Func:
		return &Node{Kind: Func, Params: desugarParams(n.Params), Body: Desugar(n.Body), Span: n.Span}
	case ast.Local:
		return &Node{Kind: Let, Binds: desugarBinds(n.Binds), Body: Desugar(n.Body), Span: n.Span}
	case ast.If:
		elseNode := n.Else
		var desugaredElse *Node
		if elseNode == nil {
			desugaredElse = NullNode(n.Span)
		} else {
			desugaredElse = Desugar(elseNode)
		}
		return &Node{Kind: If, Cond: Desugar(n.Cond), Then: Desugar(n.Then), Else: desugaredElse, Span: n.Span}
	case ast.BinOp:
		return &Node{Kind: BinOp, Op: n.Op, Left: Desugar(n.Left), Right: Desugar(n.Right), Span: n.Span}
	case ast.UnyOp:
		return &Node{Kind: UnyOp, Op: n.Op, Operand: Desugar(n.Operand), Span: n.Span}
	case ast.ErrorExpr:
		return &Node{Kind: ErrorExpr, Msg: Desugar(n.Msg), Span: n.Span}
	case ast.Assert:
		var msg *Node
		if n.AssertMsg != nil {
			msg = Desugar(n.AssertMsg)
		}
		// assert cond[: msg]; rest  ==  if cond then rest else error msg
		failMsg := msg
		if failMsg == nil {
			failMsg = StrNode(n.Span, "assertion failed")
		}
		return &Node{
			Kind: If, Cond: Desugar(n.Cond), Then: Desugar(n.Rest),
			Else: &Node{Kind: ErrorExpr, Msg: failMsg, Span: n.Span},
			Span: n.Span,
		}
	case ast.Import:
		// Import is transparent: evaluating it is exactly evaluating the
		// (already parsed) imported file's own desugared form.
		return Desugar(n.Imported)
	case ast.ImportStr:
		return StrNode(n.Span, n.ImportedStr)
	case ast.SuperFld:
		return &Node{Kind: SuperIndex, IndexExpr: StrNode(n.Span, n.FieldName), Span: n.Span}
	case ast.SuperIdx:
		return &Node{Kind: SuperIndex, IndexExpr: Desugar(n.IndexExpr), Span: n.Span}
	case ast.InSuper:
		return &Node{Kind: InSuper, IndexExpr: Desugar(n.IndexExpr), Span: n.Span}
	default:
		// Unreachable for a well-formed parser output; fail loudly rather
		// than silently drop a node kind.
		panic("core.Desugar: unhandled ast.Kind")
	}
}

func desugarParams(params []ast.Param) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: p.Name, Default: Desugar(p.Default)}
	}
	return out
}

func desugarArgs(args []ast.Arg) []Arg {
	if args == nil {
		return nil
	}
	out := make([]Arg, len(args))
	for i, a := range args {
		out[i] = Arg{Name: a.Name, Value: Desugar(a.Value)}
	}
	return out
}

func desugarBinds(binds []ast.Bind) []Bind {
	if binds == nil {
		return nil
	}
	out := make([]Bind, len(binds))
	for i, b := range binds {
		out[i] = Bind{Name: b.Name, Value: Desugar(b.Value)}
	}
	return out
}

func desugarArray(n *ast.Node) *Node {
	if n.IsComp {
		return &Node{
			Kind: ArrayComp, CompValue: Desugar(n.CompValue),
			CompVar: n.CompVar, CompIn: Desugar(n.CompIn), CompIf: Desugar(n.CompIf),
			Span: n.Span,
		}
	}
	elements := make([]*Node, len(n.Elements))
	for i, e := range n.Elements {
		elements[i] = Desugar(e)
	}
	return &Node{Kind: ArrayLit, Elements: elements, Span: n.Span}
}

// desugarObject handles both plain object literals and object
// comprehensions. Object-scoped `local` bindings are not a distinct Core
// form: each field value (and each assert, and a comprehension's key/
// value) is individually wrapped in a Let over those bindings, so the
// evaluator never needs object-local-aware lookup logic of its own.
func desugarObject(n *ast.Node) *Node {
	if n.IsComp {
		binds := desugarBinds(n.CompLocals)
		key := wrapLocals(binds, Desugar(n.CompKey))
		value := wrapLocals(binds, Desugar(n.CompValue))
		return &Node{
			Kind: ObjectComp, CompKey: key, CompValue: value, CompHidden: n.CompHidden,
			CompVar: n.CompVar, CompIn: Desugar(n.CompIn), CompIf: Desugar(n.CompIf),
			Span: n.Span,
		}
	}

	var locals []ast.Bind
	for _, f := range n.Fields {
		if f.Kind == ast.FieldLocal {
			locals = append(locals, ast.Bind{Name: f.LocalName, Value: f.Value})
		}
	}
	binds := desugarBinds(locals)

	var fields []Field
	var asserts []Assert
	for _, f := range n.Fields {
		switch f.Kind {
		case ast.FieldLocal:
			continue
		case ast.FieldAssert:
			var msg *Node
			if f.AssertMsg != nil {
				msg = wrapLocals(binds, Desugar(f.AssertMsg))
			}
			asserts = append(asserts, Assert{Cond: wrapLocals(binds, Desugar(f.Value)), Msg: msg})
		default:
			var key *Node
			if f.HasLiteral {
				key = StrNode(f.Value.Span, f.KeyLiteral)
			} else {
				key = Desugar(f.KeyExpr)
			}
			fields = append(fields, Field{KeyExpr: key, Hidden: f.Hidden, Value: wrapLocals(binds, Desugar(f.Value))})
		}
	}
	return &Node{Kind: ObjectLit, Fields: fields, Asserts: asserts, Span: n.Span}
}

func wrapLocals(binds []Bind, body *Node) *Node {
	if len(binds) == 0 || body == nil {
		return body
	}
	return &Node{Kind: Let, Binds: binds, Body: body, Span: body.Span}
}
