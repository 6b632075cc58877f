package ast

// Kind discriminates the variant a Node holds. Every Node carries a Span
// regardless of Kind; the fields that are meaningful for a given Kind are
// documented next to each constant.
type Kind int

const (
	Null Kind = iota
	Bool
	Number // Num / IsInt
	Str
	Ident     // Name
	Array     // Elements
	Object    // Fields, or the Comp* fields when IsComp
	Lookup    // Target, FieldName (a.b)
	Index     // Target, IndexExpr (a[b])
	Slice     // Target, Low, High, Step (any may be nil)
	Apply     // Target, Args, TailStrict
	Func      // Params, Body
	Local     // Binds, Body
	If        // Cond, Then, Else
	BinOp     // Op, Left, Right
	UnyOp     // Op, Operand
	ErrorExpr // Msg
	Assert    // Cond, AssertMsg, Rest
	Import    // Path, Imported
	ImportStr // Path
	Self      // (no payload)
	Dollar    // (no payload): top-level self, $
	SuperIdx  // IndexExpr: super[e]
	SuperFld  // FieldName: super.f
	InSuper   // IndexExpr: e in super
)

// Hiddenness is the visibility marker on an object field.
type Hiddenness int

const (
	Visible       Hiddenness = iota // :
	Hidden                          // ::
	ForcedVisible                   // :::
)

// Param is a function parameter; Default is nil for a required parameter.
type Param struct {
	Name    string
	Default *Node
}

// Arg is a call argument; Name is "" for a positional argument.
type Arg struct {
	Name  string
	Value *Node
}

// Bind is one binding of a `local` block. The parser leaves Params nil:
// the function-sugar form `local f(x) = e` is stored as a Func node in
// Value.
type Bind struct {
	Name   string
	Params []Param
	Value  *Node
}

// FieldKind discriminates the three kinds of entry an object literal can
// hold besides a comprehension.
type FieldKind int

const (
	FieldPlain FieldKind = iota
	FieldLocal
	FieldAssert
)

// Field is one entry of a non-comprehension object literal.
type Field struct {
	Kind FieldKind

	// FieldPlain
	KeyExpr    *Node // computed key expression; nil for a literal key, held in KeyLiteral with HasLiteral set
	KeyLiteral string
	HasLiteral bool
	Hidden     Hiddenness
	Value      *Node

	// FieldLocal
	LocalName   string
	LocalParams []Param // left nil by the parser; a method-sugar object-local is stored as a Func node in Value

	// FieldAssert
	AssertMsg *Node // optional
}

// Node is the surface AST. It is a tagged union: only the fields relevant
// to Kind are populated. A single struct (rather than an interface per
// node kind) keeps construction and traversal uniform across the parser,
// the desugarer, and diagnostics.
type Node struct {
	Kind Kind
	Span Span

	Bool  bool
	Num   float64
	IsInt bool
	Str   string
	Name  string

	Elements []*Node

	// Object
	Fields []Field
	IsComp bool
	// object comprehension: { [CompKey]: CompValue for CompVar in CompIn if CompIf }
	CompKey    *Node
	CompValue  *Node
	CompHidden Hiddenness
	CompVar    string
	CompIn     *Node
	CompIf     *Node // optional
	CompLocals []Bind

	Target     *Node // Lookup/Index/Slice/Apply callee
	FieldName  string
	IndexExpr  *Node
	Low        *Node
	High       *Node
	Step       *Node

	Args       []Arg
	TailStrict bool

	Params []Param
	Body   *Node

	Binds []Bind

	Cond *Node
	Then *Node
	Else *Node

	Op    string
	Left  *Node
	Right *Node

	Operand *Node

	Msg       *Node
	AssertMsg *Node
	Rest      *Node

	Path        string
	Imported    *Node  // resolved AST for Import; nil for ImportStr
	ImportedStr string // resolved file contents for ImportStr
}
