// Package ast defines the surface syntax tree produced by the parser:
// every node that can appear in Jsonnet source text, annotated with the
// source span it came from.
package ast

import "fmt"

// Position is a single point in a source file.
type Position struct {
	Line int // 1-based
	Col  int // 1-based, in runes
	Byte int // 0-based byte offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Span is a (begin, end) pair of source positions, attached to every
// AST/Core node for diagnostics. File is the logical import path the
// node came from, not necessarily a real filesystem path.
type Span struct {
	File  string
	Begin Position
	End   Position
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%s-%s", s.Begin, s.End)
	}
	return fmt.Sprintf("%s:%s-%s", s.File, s.Begin, s.End)
}

// Join returns the smallest span covering both s and other. Used when a
// composite node's span is derived from its first and last child.
func (s Span) Join(other Span) Span {
	return Span{File: s.File, Begin: s.Begin, End: other.End}
}
