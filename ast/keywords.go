package ast

// Keywords is the reserved word list; none of these may be used as an
// Ident. Order matches the table in the parser's lexical layer.
var Keywords = map[string]bool{
	"assert":     true,
	"else":       true,
	"error":      true,
	"false":      true,
	"for":        true,
	"function":   true,
	"if":         true,
	"import":     true,
	"importstr":  true,
	"in":         true,
	"local":      true,
	"null":       true,
	"tailstrict": true,
	"then":       true,
	"true":       true,
}

// IsKeyword reports whether name is a reserved word and therefore not a
// valid identifier.
func IsKeyword(name string) bool {
	return Keywords[name]
}
