package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	lx := New(src)
	var kinds []TokenKind
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind)
		if tok.Kind == EOF {
			return kinds
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	require.Equal(t, []TokenKind{Let, Ident, Eq, Int, Semi, EOF}, tokenKinds(t, "let x = 5;"))
}

func TestTwoCharacterOperators(t *testing.T) {
	require.Equal(t,
		[]TokenKind{EqEq, BangEq, LessEq, GreaterEq, AmpAmp, PipePipe, StarStar, EOF},
		tokenKinds(t, "== != <= >= && || **"),
	)
}

func TestCommentsAreSkipped(t *testing.T) {
	require.Equal(t, []TokenKind{Int, EOF}, tokenKinds(t, "42 // trailing comment\n"))
}

func TestStringEscapes(t *testing.T) {
	lx := New(`"line\nbreak\t\"quote\""`)
	tok, err := lx.Next()
	require.NoError(t, err)
	require.Equal(t, Str, tok.Kind)
	require.Equal(t, "line\nbreak\t\"quote\"", tok.StrVal)
}

func TestUnterminatedStringErrors(t *testing.T) {
	lx := New(`"unterminated`)
	_, err := lx.Next()
	require.Error(t, err)
}

func TestDoubleLiteral(t *testing.T) {
	lx := New("3.14")
	tok, err := lx.Next()
	require.NoError(t, err)
	require.Equal(t, Double, tok.Kind)
	require.InDelta(t, 3.14, tok.DblVal, 0.0001)
}

func TestUnexpectedCharacterErrors(t *testing.T) {
	lx := New("@")
	_, err := lx.Next()
	require.Error(t, err)
}
