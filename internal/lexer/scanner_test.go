package lexer

import (
	"testing"

	"github.com/mna/do/internal/diag"
	"github.com/stretchr/testify/require"
)

func TestScanAllArithmetic(t *testing.T) {
	var d diag.List
	toks := ScanAll("1 2 + print", &d)
	require.Equal(t, 0, d.Len())
	types := make([]Token, 0, len(toks))
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	require.Equal(t, []Token{INT, INT, PLUS, PRINT, EOF}, types)
	require.Equal(t, int64(1), toks[0].Int)
	require.Equal(t, int64(2), toks[1].Int)
}

func TestScanComment(t *testing.T) {
	var d diag.List
	toks := ScanAll("1 // trailing comment\n2 +", &d)
	require.Equal(t, []Token{INT, INT, PLUS, EOF}, tokenTypes(toks))
}

func TestScanBindingForm(t *testing.T) {
	var d diag.List
	toks := ScanAll("[x y] (x y +)", &d)
	require.Equal(t, []Token{LBRACK, IDENT, IDENT, RBRACK, LPAREN, IDENT, IDENT, PLUS, RPAREN, EOF}, tokenTypes(toks))
}

func TestScanQQQ(t *testing.T) {
	var d diag.List
	toks := ScanAll("1 ???", &d)
	require.Equal(t, []Token{INT, QQQ, EOF}, tokenTypes(toks))
}

func TestScanIllegalChar(t *testing.T) {
	var d diag.List
	toks := ScanAll("1 @ 2", &d)
	require.Equal(t, 1, d.Len())
	require.Equal(t, ILLEGAL, toks[1].Type)
}

func TestLookupKwAndIdent(t *testing.T) {
	require.Equal(t, DUP, LookupKw("dup"))
	require.Equal(t, IDENT, LookupKw("dupe"))
	require.Equal(t, TRUE, LookupKw("true"))
}

func tokenTypes(toks []TokenValue) []Token {
	out := make([]Token, 0, len(toks))
	for _, tk := range toks {
		out = append(out, tk.Type)
	}
	return out
}
