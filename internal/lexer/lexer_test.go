package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/vsopc/internal/source"
	"github.com/gmofishsauce/vsopc/internal/token"
)

func scanAll(t *testing.T, src string, ext bool) ([]token.Token, *Lexer) {
	t.Helper()
	buf := source.FromBytes(t.Name(), []byte(src))
	lx := New(buf, ext)
	var toks []token.Token
	for {
		tk := lx.Next()
		toks = append(toks, tk)
		if tk.Kind == token.EOF {
			break
		}
	}
	return toks, lx
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks, lx := scanAll(t, "class Main extends IO { }", false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 7)
	assert.Equal(t, token.Class, toks[0].Kind)
	assert.Equal(t, token.TypeIdentifier, toks[1].Kind)
	assert.Equal(t, "Main", toks[1].Value)
	assert.Equal(t, token.Extends, toks[2].Kind)
	assert.Equal(t, token.TypeIdentifier, toks[3].Kind)
	assert.Equal(t, token.LBrace, toks[4].Kind)
	assert.Equal(t, token.RBrace, toks[5].Kind)
	assert.Equal(t, token.EOF, toks[6].Kind)
}

func TestObjectIdentifier(t *testing.T) {
	toks, lx := scanAll(t, "self_foo42", false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 2)
	assert.Equal(t, token.ObjectIdentifier, toks[0].Kind)
	assert.Equal(t, "self_foo42", toks[0].Value)
}

func TestTwoCharOperators(t *testing.T) {
	toks, lx := scanAll(t, "<- <= < =", false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 5)
	assert.Equal(t, token.Assign, toks[0].Kind)
	assert.Equal(t, token.LowerEqual, toks[1].Kind)
	assert.Equal(t, token.Lower, toks[2].Kind)
	assert.Equal(t, token.Equal, toks[3].Kind)
}

func TestExtensionOperatorsRequireFlag(t *testing.T) {
	_, lx := scanAll(t, ">", false)
	assert.True(t, lx.HasErrors())

	toks, lx2 := scanAll(t, "> >=", true)
	require.False(t, lx2.HasErrors())
	assert.Equal(t, token.Greater, toks[0].Kind)
	assert.Equal(t, token.GreaterEqual, toks[1].Kind)
}

func TestDecimalAndHexIntegers(t *testing.T) {
	toks, lx := scanAll(t, "42 0x2A", false)
	require.False(t, lx.HasErrors())
	assert.Equal(t, token.IntegerLiteral, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Value)
	assert.Equal(t, token.IntegerLiteral, toks[1].Kind)
	assert.Equal(t, "0x2A", toks[1].Value)
}

func TestInvalidDecimalIntegerIsRecovered(t *testing.T) {
	toks, lx := scanAll(t, "42a foo", false)
	assert.True(t, lx.HasErrors())
	require.Len(t, toks, 2)
	assert.Equal(t, token.ObjectIdentifier, toks[0].Kind)
	assert.Equal(t, "foo", toks[0].Value)
}

func TestLineComment(t *testing.T) {
	toks, lx := scanAll(t, "foo // bar baz\nqux", false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 3)
	assert.Equal(t, "foo", toks[0].Value)
	assert.Equal(t, "qux", toks[1].Value)
	assert.Equal(t, 2, toks[1].Line)
}

func TestNestedBlockComment(t *testing.T) {
	toks, lx := scanAll(t, "a (* outer (* inner *) still outer *) b", false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 3)
	assert.Equal(t, "a", toks[0].Value)
	assert.Equal(t, "b", toks[1].Value)
}

func TestUnterminatedBlockCommentReportsOpenLocation(t *testing.T) {
	_, lx := scanAll(t, "a (* never closed", false)
	require.True(t, lx.HasErrors())
	errs := lx.Errors()
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, 3, errs[0].Col)
}

func TestUnmatchedCommentClose(t *testing.T) {
	_, lx := scanAll(t, "a *) b", false)
	require.True(t, lx.HasErrors())
}

func TestSimpleStringLiteral(t *testing.T) {
	toks, lx := scanAll(t, `"hello"`, false)
	require.False(t, lx.HasErrors())
	require.Len(t, toks, 2)
	assert.Equal(t, token.StringLiteral, toks[0].Kind)
	assert.Equal(t, `"hello"`, toks[0].Value)
}

func TestStringEscapesNormalizeToHex(t *testing.T) {
	toks, lx := scanAll(t, `"a\"b"`, false)
	require.False(t, lx.HasErrors())
	assert.Equal(t, `"a\x22b"`, toks[0].Value)
}

func TestStringLineContinuationIsRemoved(t *testing.T) {
	toks, lx := scanAll(t, "\"a\\\n   b\"", false)
	require.False(t, lx.HasErrors())
	assert.Equal(t, `"ab"`, toks[0].Value)
}

func TestStringWithRawNewlineIsError(t *testing.T) {
	_, lx := scanAll(t, "\"a\nb\"", false)
	assert.True(t, lx.HasErrors())
}

func TestUnterminatedStringReportsOpenQuote(t *testing.T) {
	_, lx := scanAll(t, `"never closed`, false)
	require.True(t, lx.HasErrors())
	errs := lx.Errors()
	assert.Contains(t, errs[len(errs)-1].Message, "not terminated")
	assert.Equal(t, 1, errs[len(errs)-1].Col)
}

func TestNonPrintableByteIsHexEscaped(t *testing.T) {
	toks, lx := scanAll(t, "\"a\x01b\"", false)
	require.False(t, lx.HasErrors())
	assert.Equal(t, `"a\x01b"`, toks[0].Value)
}

func TestUnknownEscapeIsError(t *testing.T) {
	_, lx := scanAll(t, `"a\qb"`, false)
	assert.True(t, lx.HasErrors())
}

func TestMultiErrorAccumulation(t *testing.T) {
	_, lx := scanAll(t, "1a @ 2b", false)
	assert.GreaterOrEqual(t, len(lx.Errors()), 2)
}
