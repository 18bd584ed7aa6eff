package parser

import (
	"testing"

	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/diag"
	"github.com/stretchr/testify/require"
)

func parseOK(t *testing.T, src string) []ast.Op {
	t.Helper()
	var d diag.List
	ops := Parse(src, &d)
	require.Equal(t, 0, d.Len(), "unexpected diagnostics: %v", d.Items)
	return ops
}

func TestParseArithmetic(t *testing.T) {
	ops := parseOK(t, "1 2 + print")
	require.Len(t, ops, 4)
	require.Equal(t, ast.PushInt, ops[0].Kind)
	require.Equal(t, int64(1), ops[0].IntVal)
	require.Equal(t, ast.Add, ops[2].Kind)
	require.Equal(t, ast.Print, ops[3].Kind)
}

func TestParseListLiteral(t *testing.T) {
	ops := parseOK(t, "[1 2 3] len print")
	require.Len(t, ops, 3)
	require.Equal(t, ast.PushList, ops[0].Kind)
	require.Len(t, ops[0].Elems, 3)
}

func TestParseMapWithBlock(t *testing.T) {
	ops := parseOK(t, "[1 2 3] (1 +) map print")
	require.Equal(t, ast.PushBlock, ops[1].Kind)
	require.Len(t, ops[1].Body, 2)
	require.Equal(t, ast.Map, ops[2].Kind)
}

func TestParseFn(t *testing.T) {
	ops := parseOK(t, "fn sq ( dup * ) 5 sq print")
	require.Equal(t, ast.Fn, ops[0].Kind)
	require.Equal(t, "sq", ops[0].Name)
	require.Len(t, ops[0].Body, 2)
	require.Equal(t, ast.Ident, ops[2].Kind)
	require.Equal(t, "sq", ops[2].Name)
}

func TestParseIfElse(t *testing.T) {
	ops := parseOK(t, "true if ( 1 print ) else ( 2 print )")
	require.Equal(t, ast.IfElse, ops[1].Kind)
	require.Len(t, ops[1].Body, 2)
	require.Len(t, ops[1].Else, 2)
}

func TestParseBindingForm(t *testing.T) {
	ops := parseOK(t, "1 2 [x y] (x y +) print")
	require.Equal(t, ast.Binding, ops[2].Kind)
	require.Equal(t, []string{"x", "y"}, ops[2].Names)
	require.Len(t, ops[2].Body, 3)
}

func TestParseListVsBindingAmbiguity(t *testing.T) {
	listOps := parseOK(t, "[1 2 3]")
	require.Equal(t, ast.PushList, listOps[0].Kind)

	bindOps := parseOK(t, "[a b] (a b +)")
	require.Equal(t, ast.Binding, bindOps[0].Kind)
}

func TestParseElseWithoutIf(t *testing.T) {
	var d diag.List
	Parse("else ( 1 )", &d)
	require.Equal(t, 1, d.Len())
}

func TestParseChoiceIsElseSynonym(t *testing.T) {
	ops := parseOK(t, "true if ( 1 print ) choice ( 2 print )")
	require.Equal(t, ast.IfElse, ops[1].Kind)
	require.Len(t, ops[1].Body, 2)
	require.Len(t, ops[1].Else, 2)
}

func TestParseChoiceWithoutIf(t *testing.T) {
	var d diag.List
	Parse("choice ( 1 )", &d)
	require.Equal(t, 1, d.Len())
}
