package types

import (
	"testing"

	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/parser"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string, file bool) ([]TypedOp, *diag.List) {
	t.Helper()
	d := &diag.List{File: "t.do", Src: src}
	ops := parser.Parse(src, d)
	c := New(d, false)
	typed := c.Check(ops, file)
	return typed, d
}

func TestCheckArithmetic(t *testing.T) {
	typed, d := check(t, "1 2 + print", true)
	require.Equal(t, 0, d.Len())
	require.Len(t, typed, 4)
	require.Equal(t, []TypeKind{TInt, TInt}, typed[2].Ins)
}

func TestCheckTypeMismatch(t *testing.T) {
	_, d := check(t, "1 true +", true)
	// the mismatch, then the file-mode "unused value" for the Int + leaves
	require.Equal(t, 2, d.Len())
	require.Contains(t, d.Items[0].Message, "type mismatch")
}

func TestCheckListElementMismatch(t *testing.T) {
	_, d := check(t, "[1 true]", true)
	require.GreaterOrEqual(t, d.Len(), 1)
}

func TestCheckResidualStackFileMode(t *testing.T) {
	_, d := check(t, "1 2 +", true)
	require.Equal(t, 1, d.Len())
}

func TestCheckResidualStackReplMode(t *testing.T) {
	d := &diag.List{File: "r.do", Src: "1 2 +"}
	ops := parser.Parse("1 2 +", d)
	c := New(d, true)
	c.Check(ops, false)
	require.Equal(t, 0, d.Len())
	require.Len(t, c.stack, 1)
}

func TestCheckMap(t *testing.T) {
	typed, d := check(t, "[1 2 3] (1 +) map print", true)
	require.Equal(t, 0, d.Len())
	mapOp := typed[2]
	require.Equal(t, NewList(TInt), mapOp.Outs[0])
}

func TestCheckFilter(t *testing.T) {
	_, d := check(t, "[1 2 3 4] (2 % 0 =) filter print", true)
	require.Equal(t, 0, d.Len())
}

func TestCheckFold(t *testing.T) {
	_, d := check(t, "[1 2 3 4] 0 (+) fold print", true)
	require.Equal(t, 0, d.Len())
}

func TestCheckFn(t *testing.T) {
	_, d := check(t, "fn sq ( dup * ) 5 sq print", true)
	require.Equal(t, 0, d.Len())
}

func TestCheckIfElse(t *testing.T) {
	_, d := check(t, "true if ( 1 print ) else ( 2 print )", true)
	require.Equal(t, 0, d.Len())
}

func TestCheckIfAsymmetric(t *testing.T) {
	_, d := check(t, "true if ( 1 )", true)
	require.GreaterOrEqual(t, d.Len(), 1)
}

func TestCheckBinding(t *testing.T) {
	_, d := check(t, "1 2 [x y] (x y +) print", true)
	require.Equal(t, 0, d.Len())
}

func TestCheckUnknownIdent(t *testing.T) {
	_, d := check(t, "foo", true)
	require.Equal(t, 1, d.Len())
}

func TestEraseIdempotent(t *testing.T) {
	c := New(&diag.List{}, false)
	g := c.fresh()
	c.bind(g.Index, TInt)
	require.Equal(t, c.erase(g), c.erase(c.erase(g)))
}
