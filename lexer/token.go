// Package lexer tokenizes Jsonnet source text, using a small closed set
// of token kinds plus a payload string rather than a deeply typed token
// hierarchy.
package lexer

import "github.com/fabvit86/jsonnet-go/ast"

type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	Number
	String
	Operator // any of the infix/unary operator spellings
	Punct    // ( ) [ ] { } , ; : :: ::: . $
)

// Token is one lexical unit with its source span and literal text.
type Token struct {
	Kind  Kind
	Text  string
	Span  ast.Span
	IsInt bool // Number only
	Num   float64
}

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	case Operator:
		return "operator"
	case Punct:
		return "punctuation"
	default:
		return "<unknown token>"
	}
}
