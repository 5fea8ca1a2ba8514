// Package token defines the closed set of VSOP token kinds and the
// immutable Token value the lexer produces.
package token

import (
	"strconv"
	"strings"
)

// Kind is the closed tag set from spec.md §3: keywords, punctuation, and the
// four value-bearing kinds.
type Kind int

const (
	EOF Kind = iota

	// Value-bearing kinds
	IntegerLiteral
	StringLiteral
	TypeIdentifier
	ObjectIdentifier

	// Keywords
	And
	Bool
	Class
	Do
	Else
	Extends
	False
	If
	In
	Int32
	Isnull
	Let
	New
	Not
	String
	Then
	True
	Unit
	While
	Or // extension only

	// Punctuation
	LBrace
	RBrace
	LParen
	RParen
	Colon
	Semicolon
	Comma
	Plus
	Minus
	Star
	Slash
	Pow
	Dot
	Equal
	Lower
	LowerEqual
	Assign
	Greater      // extension only
	GreaterEqual // extension only
)

var names = map[Kind]string{
	EOF:              "eof",
	IntegerLiteral:   "integer-literal",
	StringLiteral:    "string-literal",
	TypeIdentifier:   "type-identifier",
	ObjectIdentifier: "object-identifier",
	And:              "and",
	Bool:             "bool",
	Class:            "class",
	Do:               "do",
	Else:             "else",
	Extends:          "extends",
	False:            "false",
	If:               "if",
	In:               "in",
	Int32:            "int32",
	Isnull:           "isnull",
	Let:              "let",
	New:              "new",
	Not:              "not",
	String:           "string",
	Then:             "then",
	True:             "true",
	Unit:             "unit",
	While:            "while",
	Or:               "or",
	LBrace:           "lbrace",
	RBrace:           "rbrace",
	LParen:           "lpar",
	RParen:           "rpar",
	Colon:            "colon",
	Semicolon:        "semicolon",
	Comma:            "comma",
	Plus:             "plus",
	Minus:            "minus",
	Star:             "times",
	Slash:            "div",
	Pow:              "pow",
	Dot:              "dot",
	Equal:            "equal",
	Lower:            "lower",
	LowerEqual:       "lower-equal",
	Assign:           "assign",
	Greater:          "greater",
	GreaterEqual:     "greater-equal",
}

// Keywords maps the reserved object-identifier spelling to its Kind.
var Keywords = map[string]Kind{
	"and": And, "bool": Bool, "class": Class, "do": Do, "else": Else,
	"extends": Extends, "false": False, "if": If, "in": In, "int32": Int32,
	"isnull": Isnull, "let": Let, "new": New, "not": Not, "string": String,
	"then": Then, "true": True, "unit": Unit, "while": While,
}

// ExtKeywords is consulted in addition to Keywords when the -ext extension
// is active; it is never merged into Keywords.
var ExtKeywords = map[string]Kind{
	"or": Or,
}

// String renders the token's dash-cased kind name as used in the -lex dump.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// hasValue reports whether this kind carries a Value in the -lex dump.
func (k Kind) hasValue() bool {
	switch k {
	case IntegerLiteral, StringLiteral, TypeIdentifier, ObjectIdentifier:
		return true
	}
	return false
}

// Token is an immutable lexer output: a kind, its source text (escaped
// verbatim for string literals, see spec.md §4.1), and its starting
// location.
type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
}

// Dump renders the token in the exact -lex stdout format:
// <line>,<col>,<kind-with-dashes>[,<value>]
func (t Token) Dump() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(t.Line))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(t.Column))
	b.WriteByte(',')
	b.WriteString(t.Kind.String())
	if t.Kind.hasValue() {
		b.WriteByte(',')
		b.WriteString(t.Value)
	}
	return b.String()
}
