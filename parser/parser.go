// Package parser implements a recursive-descent / precedence-climbing
// surface parser: it turns a logical file path plus source text into a
// surface ast.Node, resolving import expressions eagerly and
// recursively as it goes.
package parser

import (
	"fmt"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
	"github.com/fabvit86/jsonnet-go/internal/jlog"
	"github.com/fabvit86/jsonnet-go/lexer"
)

// precedence maps an infix operator spelling to its binding power; higher
// binds tighter. Used by the precedence-climbing loop in parseBinary.
var precedence = map[string]int{
	"*": 9, "/": 9, "%": 9,
	"+": 8, "-": 8,
	"<<": 7, ">>": 7,
	"<": 6, "<=": 6, ">": 6, ">=": 6, "in": 6,
	"==": 5, "!=": 5,
	"&":  4,
	"^":  3,
	"|":  2,
	"&&": 1,
	"||": 0,
}

const unaryOps = "-+!~"

// Parse parses a single logical file, resolving any `import` expressions
// it contains (recursively, with per-canonical-path caching) via hook.
func Parse(file, src string, hook ImportHook, maxImportDepth int) (*ast.Node, error) {
	cache := map[string]*ast.Node{}
	inProgress := map[string]bool{}
	return parseFile(file, src, hook, cache, inProgress, 0, maxImportDepth)
}

func parseFile(file, src string, hook ImportHook, cache map[string]*ast.Node, inProgress map[string]bool, depth, maxDepth int) (*ast.Node, error) {
	if depth > maxDepth {
		return nil, jerr.New(jerr.ImportError, fmt.Sprintf("import depth exceeded %d at %q", maxDepth, file), ast.Span{File: file})
	}
	toks, err := lexer.Lex(file, src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		file: file, toks: toks, hook: hook,
		cache: cache, inProgress: inProgress,
		depth: depth, maxDepth: maxDepth,
	}
	node, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.EOF {
		return nil, p.errorf("unexpected trailing token %q", p.cur().Text)
	}
	return node, nil
}

type parser struct {
	file       string
	toks       []lexer.Token
	pos        int
	hook       ImportHook
	cache      map[string]*ast.Node
	inProgress map[string]bool
	depth      int
	maxDepth   int
}

func (p *parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return jerr.New(jerr.ParseError, fmt.Sprintf(format, args...), p.cur().Span)
}

func (p *parser) expectPunct(text string) (lexer.Token, error) {
	if p.cur().Kind != lexer.Punct || p.cur().Text != text {
		return lexer.Token{}, p.errorf("expected %q, got %q", text, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(text string) (lexer.Token, error) {
	if p.cur().Kind != lexer.Keyword || p.cur().Text != text {
		return lexer.Token{}, p.errorf("expected keyword %q, got %q", text, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (string, error) {
	if p.cur().Kind != lexer.Ident {
		return "", p.errorf("expected identifier, got %q", p.cur().Text)
	}
	return p.advance().Text, nil
}

func (p *parser) isPunct(text string) bool {
	return p.cur().Kind == lexer.Punct && p.cur().Text == text
}

func (p *parser) isKeyword(text string) bool {
	return p.cur().Kind == lexer.Keyword && p.cur().Text == text
}

// ---- expression grammar ----

func (p *parser) parseExpr(minPrec int) (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		opText, isOp := p.peekOperator()
		if !isOp {
			break
		}
		prec, ok := precedence[opText]
		if !ok {
			return nil, p.errorf("unknown operator %q", opText)
		}
		if prec < minPrec {
			break
		}
		begin := left.Span
		p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		node := &ast.Node{Kind: ast.BinOp, Op: opText, Left: left, Right: right, Span: begin.Join(right.Span)}
		if opText == "in" && right.Kind == ast.Ident && right.Name == "super" {
			node = &ast.Node{Kind: ast.InSuper, IndexExpr: left, Span: node.Span}
		}
		left = node
	}
	return left, nil
}

// peekOperator reports the operator spelling at the cursor, if any — an
// Operator token's own text, or the keyword "in".
func (p *parser) peekOperator() (string, bool) {
	t := p.cur()
	if t.Kind == lexer.Operator {
		return t.Text, true
	}
	if t.Kind == lexer.Keyword && t.Text == "in" {
		return "in", true
	}
	return "", false
}

func (p *parser) parseUnary() (*ast.Node, error) {
	t := p.cur()
	if t.Kind == lexer.Operator && len(t.Text) == 1 && containsByte(unaryOps, t.Text[0]) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.UnyOp, Op: t.Text, Operand: operand, Span: t.Span.Join(operand.Span)}, nil
	}
	return p.parsePostfix()
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

func (p *parser) parsePostfix() (*ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			node = &ast.Node{Kind: ast.Lookup, Target: node, FieldName: name, Span: node.Span.Join(p.toks[p.pos-1].Span)}
		case p.isPunct("("):
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expectPunct(")")
			if err != nil {
				return nil, err
			}
			tailstrict := false
			if p.isKeyword("tailstrict") {
				p.advance()
				tailstrict = true
			}
			node = &ast.Node{Kind: ast.Apply, Target: node, Args: args, TailStrict: tailstrict, Span: node.Span.Join(closeTok.Span)}
		case p.isPunct("["):
			p.advance()
			idxNode, err := p.parseIndexOrSlice(node)
			if err != nil {
				return nil, err
			}
			node = idxNode
		default:
			return node, nil
		}
	}
}

func (p *parser) parseIndexOrSlice(target *ast.Node) (*ast.Node, error) {
	var low, high, step *ast.Node
	var err error
	if !p.isPunct(":") && !p.isPunct("]") {
		low, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	}
	isSlice := false
	if p.isPunct(":") {
		isSlice = true
		p.advance()
		if !p.isPunct(":") && !p.isPunct("]") {
			high, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		}
		if p.isPunct(":") {
			p.advance()
			if !p.isPunct("]") {
				step, err = p.parseExpr(0)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	span := target.Span.Join(closeTok.Span)
	if isSlice {
		return &ast.Node{Kind: ast.Slice, Target: target, Low: low, High: high, Step: step, Span: span}, nil
	}
	return &ast.Node{Kind: ast.Index, Target: target, IndexExpr: low, Span: span}, nil
}

func (p *parser) parseArgs() ([]ast.Arg, error) {
	var args []ast.Arg
	if p.isPunct(")") {
		return args, nil
	}
	for {
		var arg ast.Arg
		if p.cur().Kind == lexer.Ident && p.peek(1).Kind == lexer.Operator && p.peek(1).Text == "=" {
			arg.Name = p.cur().Text
			p.advance()
			p.advance()
		}
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		arg.Value = val
		args = append(args, arg)
		if p.isPunct(",") {
			p.advance()
			if p.isPunct(")") {
				break
			}
			continue
		}
		break
	}
	return args, nil
}

func (p *parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	if p.isPunct(")") {
		p.advance()
		return params, nil
	}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var def *ast.Node
		if p.cur().Kind == lexer.Operator && p.cur().Text == "=" {
			p.advance()
			def, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		}
		params = append(params, ast.Param{Name: name, Default: def})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parsePrimary() (*ast.Node, error) {
	t := p.cur()
	switch {
	case t.Kind == lexer.Number:
		p.advance()
		return &ast.Node{Kind: ast.Number, Num: t.Num, IsInt: t.IsInt, Span: t.Span}, nil
	case t.Kind == lexer.String:
		p.advance()
		return &ast.Node{Kind: ast.Str, Str: t.Text, Span: t.Span}, nil
	case t.Kind == lexer.Keyword && t.Text == "true":
		p.advance()
		return &ast.Node{Kind: ast.Bool, Bool: true, Span: t.Span}, nil
	case t.Kind == lexer.Keyword && t.Text == "false":
		p.advance()
		return &ast.Node{Kind: ast.Bool, Bool: false, Span: t.Span}, nil
	case t.Kind == lexer.Keyword && t.Text == "null":
		p.advance()
		return &ast.Node{Kind: ast.Null, Span: t.Span}, nil
	case t.Kind == lexer.Keyword && t.Text == "if":
		return p.parseIf()
	case t.Kind == lexer.Keyword && t.Text == "function":
		return p.parseFunc()
	case t.Kind == lexer.Keyword && t.Text == "local":
		return p.parseLocal()
	case t.Kind == lexer.Keyword && t.Text == "import":
		return p.parseImport(false)
	case t.Kind == lexer.Keyword && t.Text == "importstr":
		return p.parseImport(true)
	case t.Kind == lexer.Keyword && t.Text == "error":
		p.advance()
		msg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.ErrorExpr, Msg: msg, Span: t.Span.Join(msg.Span)}, nil
	case t.Kind == lexer.Keyword && t.Text == "assert":
		return p.parseAssertExpr()
	case t.Kind == lexer.Punct && t.Text == "(":
		p.advance()
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case t.Kind == lexer.Punct && t.Text == "[":
		return p.parseArray()
	case t.Kind == lexer.Punct && t.Text == "{":
		return p.parseObject()
	case t.Kind == lexer.Punct && t.Text == "$":
		p.advance()
		return &ast.Node{Kind: ast.Dollar, Span: t.Span}, nil
	case t.Kind == lexer.Ident && t.Text == "self":
		p.advance()
		return &ast.Node{Kind: ast.Self, Span: t.Span}, nil
	case t.Kind == lexer.Ident && t.Text == "super":
		return p.parseSuper(t)
	case t.Kind == lexer.Ident:
		p.advance()
		return &ast.Node{Kind: ast.Ident, Name: t.Text, Span: t.Span}, nil
	default:
		return nil, p.errorf("unexpected token %q", t.Text)
	}
}

func (p *parser) parseSuper(t lexer.Token) (*ast.Node, error) {
	p.advance()
	switch {
	case p.isPunct("."):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.SuperFld, FieldName: name, Span: t.Span}, nil
	case p.isPunct("["):
		p.advance()
		idx, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		closeTok, err := p.expectPunct("]")
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.SuperIdx, IndexExpr: idx, Span: t.Span.Join(closeTok.Span)}, nil
	default:
		// Bare `super`, only meaningful as the right operand of `in`;
		// parseExpr's binary loop rewrites `e in super` into InSuper.
		return &ast.Node{Kind: ast.Ident, Name: "super", Span: t.Span}, nil
	}
}

func (p *parser) parseIf() (*ast.Node, error) {
	begin, _ := p.expectKeyword("if")
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	span := begin.Span.Join(then.Span)
	var elseExpr *ast.Node
	if p.isKeyword("else") {
		p.advance()
		elseExpr, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		span = begin.Span.Join(elseExpr.Span)
	}
	return &ast.Node{Kind: ast.If, Cond: cond, Then: then, Else: elseExpr, Span: span}, nil
}

func (p *parser) parseFunc() (*ast.Node, error) {
	begin, _ := p.expectKeyword("function")
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Func, Params: params, Body: body, Span: begin.Span.Join(body.Span)}, nil
}

func (p *parser) parseLocal() (*ast.Node, error) {
	begin, _ := p.expectKeyword("local")
	binds, err := p.parseBindList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Local, Binds: binds, Body: body, Span: begin.Span.Join(body.Span)}, nil
}

func (p *parser) parseBindList() ([]ast.Bind, error) {
	var binds []ast.Bind
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var value *ast.Node
		if p.isPunct("(") {
			p.advance()
			params, err := p.parseParams()
			if err != nil {
				return nil, err
			}
			body, err := expectEquals(p)
			if err != nil {
				return nil, err
			}
			fnBody, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			_ = body
			value = &ast.Node{Kind: ast.Func, Params: params, Body: fnBody, Span: fnBody.Span}
		} else {
			if _, err := expectEquals(p); err != nil {
				return nil, err
			}
			value, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		}
		binds = append(binds, ast.Bind{Name: name, Value: value})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return binds, nil
}

func expectEquals(p *parser) (lexer.Token, error) {
	if p.cur().Kind != lexer.Operator || p.cur().Text != "=" {
		return lexer.Token{}, p.errorf("expected '=', got %q", p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) parseAssertExpr() (*ast.Node, error) {
	begin, _ := p.expectKeyword("assert")
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	var msg *ast.Node
	if p.isPunct(":") {
		p.advance()
		msg, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	rest, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Assert, Cond: cond, AssertMsg: msg, Rest: rest, Span: begin.Span.Join(rest.Span)}, nil
}

func (p *parser) parseImport(isStr bool) (*ast.Node, error) {
	begin := p.cur()
	p.advance()
	if p.cur().Kind != lexer.String {
		return nil, p.errorf("expected string literal after import, got %q", p.cur().Text)
	}
	pathTok := p.advance()
	kind := ast.Import
	if isStr {
		kind = ast.ImportStr
	}
	node := &ast.Node{Kind: kind, Path: pathTok.Text, Span: begin.Span.Join(pathTok.Span)}
	if isStr {
		contents, _, err := p.resolveImportStr(pathTok.Text, pathTok.Span)
		if err != nil {
			return nil, err
		}
		node.ImportedStr = contents
		return node, nil
	}
	imported, err := p.resolveImport(pathTok.Text, pathTok.Span)
	if err != nil {
		return nil, err
	}
	node.Imported = imported
	return node, nil
}

func (p *parser) resolveImportStr(importedPath string, span ast.Span) (string, string, error) {
	if p.hook == nil {
		return "", "", jerr.New(jerr.ImportError, "no import hook configured", span)
	}
	contents, canonical, err := p.hook(dirOf(p.file), importedPath)
	if err != nil {
		return "", "", jerr.New(jerr.ImportError, err.Error(), span)
	}
	return contents, canonical, nil
}

func (p *parser) resolveImport(importedPath string, span ast.Span) (*ast.Node, error) {
	if p.hook == nil {
		return nil, jerr.New(jerr.ImportError, "no import hook configured", span)
	}
	contents, canonical, err := p.hook(dirOf(p.file), importedPath)
	if err != nil {
		return nil, jerr.New(jerr.ImportError, err.Error(), span)
	}
	if cached, ok := p.cache[canonical]; ok {
		jlog.Importf("import cache hit for %q", canonical)
		return cached, nil
	}
	if p.inProgress[canonical] {
		// Import resolution is eager: the imported file is parsed here,
		// before evaluation starts. A file that imports itself, directly
		// or through other files, would recurse forever, so any import
		// cycle, including a mutually-recursive pair of files, is
		// reported as an ImportError.
		return nil, jerr.New(jerr.ImportError, fmt.Sprintf("import cycle detected resolving %q", canonical), span)
	}
	p.inProgress[canonical] = true
	defer delete(p.inProgress, canonical)
	jlog.Importf("resolving import %q -> %q", importedPath, canonical)
	node, err := parseFile(canonical, contents, p.hook, p.cache, p.inProgress, p.depth+1, p.maxDepth)
	if err != nil {
		return nil, err
	}
	p.cache[canonical] = node
	return node, nil
}

func (p *parser) parseArray() (*ast.Node, error) {
	begin, _ := p.expectPunct("[")
	if p.isPunct("]") {
		end := p.advance()
		return &ast.Node{Kind: ast.Array, Span: begin.Span.Join(end.Span)}, nil
	}
	first, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		p.advance()
		v, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		inExpr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		var cond *ast.Node
		if p.isKeyword("if") {
			p.advance()
			cond, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		}
		end, err := p.expectPunct("]")
		if err != nil {
			return nil, err
		}
		return &ast.Node{
			Kind: ast.Array, IsComp: true, CompValue: first,
			CompVar: v, CompIn: inExpr, CompIf: cond,
			Span: begin.Span.Join(end.Span),
		}, nil
	}
	elements := []*ast.Node{first}
	for p.isPunct(",") {
		p.advance()
		if p.isPunct("]") {
			break
		}
		el, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	end, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Array, Elements: elements, Span: begin.Span.Join(end.Span)}, nil
}

func (p *parser) parseObject() (*ast.Node, error) {
	begin, _ := p.expectPunct("{")
	if p.isPunct("}") {
		end := p.advance()
		return &ast.Node{Kind: ast.Object, Span: begin.Span.Join(end.Span)}, nil
	}
	var fields []ast.Field
	for {
		field, comp, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		if comp != nil {
			end, err := p.expectPunct("}")
			if err != nil {
				return nil, err
			}
			comp.CompLocals = localsOf(fields)
			comp.Span = begin.Span.Join(end.Span)
			return comp, nil
		}
		fields = append(fields, field)
		if p.isPunct(",") {
			p.advance()
			if p.isPunct("}") {
				break
			}
			continue
		}
		break
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	if err := checkDuplicateKeys(fields); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Object, Fields: fields, Span: begin.Span.Join(end.Span)}, nil
}

func localsOf(fields []ast.Field) []ast.Bind {
	var binds []ast.Bind
	for _, f := range fields {
		if f.Kind == ast.FieldLocal {
			binds = append(binds, ast.Bind{Name: f.LocalName, Value: f.Value})
		}
	}
	return binds
}

func checkDuplicateKeys(fields []ast.Field) error {
	seen := map[string]bool{}
	for _, f := range fields {
		if f.Kind != ast.FieldPlain || !f.HasLiteral {
			continue
		}
		if seen[f.KeyLiteral] {
			return jerr.New(jerr.ParseError, fmt.Sprintf("duplicate field name %q", f.KeyLiteral), f.Value.Span)
		}
		seen[f.KeyLiteral] = true
	}
	return nil
}

// parseObjectEntry parses one object-literal entry. When the entry turns
// out to be the head of an object comprehension ([k]: v for x in xs
// [if c]), it returns the fully parsed comprehension Node as comp and a
// nil field; the caller still must consume the closing '}'.
func (p *parser) parseObjectEntry() (ast.Field, *ast.Node, error) {
	switch {
	case p.isKeyword("local"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return ast.Field{}, nil, err
		}
		var value *ast.Node
		if p.isPunct("(") {
			p.advance()
			params, err := p.parseParams()
			if err != nil {
				return ast.Field{}, nil, err
			}
			if _, err := expectEquals(p); err != nil {
				return ast.Field{}, nil, err
			}
			body, err := p.parseExpr(0)
			if err != nil {
				return ast.Field{}, nil, err
			}
			value = &ast.Node{Kind: ast.Func, Params: params, Body: body, Span: body.Span}
		} else {
			if _, err := expectEquals(p); err != nil {
				return ast.Field{}, nil, err
			}
			value, err = p.parseExpr(0)
			if err != nil {
				return ast.Field{}, nil, err
			}
		}
		return ast.Field{Kind: ast.FieldLocal, LocalName: name, Value: value}, nil, nil

	case p.isKeyword("assert"):
		p.advance()
		cond, err := p.parseExpr(0)
		if err != nil {
			return ast.Field{}, nil, err
		}
		var msg *ast.Node
		if p.isPunct(":") {
			p.advance()
			msg, err = p.parseExpr(0)
			if err != nil {
				return ast.Field{}, nil, err
			}
		}
		return ast.Field{Kind: ast.FieldAssert, Value: cond, AssertMsg: msg}, nil, nil

	case p.isPunct("["):
		p.advance()
		keyExpr, err := p.parseExpr(0)
		if err != nil {
			return ast.Field{}, nil, err
		}
		if _, err := p.expectPunct("]"); err != nil {
			return ast.Field{}, nil, err
		}
		hidden, err := p.parseHiddenness()
		if err != nil {
			return ast.Field{}, nil, err
		}
		value, err := p.parseExpr(0)
		if err != nil {
			return ast.Field{}, nil, err
		}
		if p.isKeyword("for") {
			p.advance()
			v, err := p.expectIdent()
			if err != nil {
				return ast.Field{}, nil, err
			}
			if _, err := p.expectKeyword("in"); err != nil {
				return ast.Field{}, nil, err
			}
			inExpr, err := p.parseExpr(0)
			if err != nil {
				return ast.Field{}, nil, err
			}
			var cond *ast.Node
			if p.isKeyword("if") {
				p.advance()
				cond, err = p.parseExpr(0)
				if err != nil {
					return ast.Field{}, nil, err
				}
			}
			return ast.Field{}, &ast.Node{
				Kind: ast.Object, IsComp: true,
				CompKey: keyExpr, CompValue: value, CompHidden: hidden,
				CompVar: v, CompIn: inExpr, CompIf: cond,
			}, nil
		}
		return ast.Field{Kind: ast.FieldPlain, KeyExpr: keyExpr, Hidden: hidden, Value: value}, nil, nil

	default:
		var keyStr string
		switch {
		case p.cur().Kind == lexer.Ident:
			keyStr = p.advance().Text
		case p.cur().Kind == lexer.String:
			keyStr = p.advance().Text
		default:
			return ast.Field{}, nil, p.errorf("expected field name, got %q", p.cur().Text)
		}
		var params []ast.Param
		isMethod := false
		if p.isPunct("(") {
			isMethod = true
			p.advance()
			ps, err := p.parseParams()
			if err != nil {
				return ast.Field{}, nil, err
			}
			params = ps
		}
		hidden, err := p.parseHiddenness()
		if err != nil {
			return ast.Field{}, nil, err
		}
		value, err := p.parseExpr(0)
		if err != nil {
			return ast.Field{}, nil, err
		}
		if isMethod {
			value = &ast.Node{Kind: ast.Func, Params: params, Body: value, Span: value.Span}
		}
		return ast.Field{Kind: ast.FieldPlain, KeyLiteral: keyStr, HasLiteral: true, Hidden: hidden, Value: value}, nil, nil
	}
}

func (p *parser) parseHiddenness() (ast.Hiddenness, error) {
	if p.cur().Kind != lexer.Punct {
		return ast.Visible, p.errorf("expected ':', '::', or ':::', got %q", p.cur().Text)
	}
	switch p.cur().Text {
	case ":":
		p.advance()
		return ast.Visible, nil
	case "::":
		p.advance()
		return ast.Hidden, nil
	case ":::":
		p.advance()
		return ast.ForcedVisible, nil
	default:
		return ast.Visible, p.errorf("expected ':', '::', or ':::', got %q", p.cur().Text)
	}
}
