package vm

import (
	"strings"
	"testing"

	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/lower"
	"github.com/mna/do/internal/parser"
	"github.com/mna/do/internal/types"
	"github.com/stretchr/testify/require"
)

func runSrc(t *testing.T, src string) string {
	t.Helper()
	d := &diag.List{File: "t.do", Src: src}
	ops := parser.Parse(src, d)
	c := types.New(d, false)
	typed := c.Check(ops, true)
	require.Equal(t, 0, d.Len(), "unexpected diagnostics: %v", d.Items)
	prog := lower.New().Program(typed)

	var buf strings.Builder
	m, err := New(prog, &buf)
	require.NoError(t, err)
	require.NoError(t, m.Run())
	return buf.String()
}

func TestVMArithmeticPrint(t *testing.T) {
	require.Equal(t, "3\n", runSrc(t, "1 2 + print"))
}

func TestVMBoolPrint(t *testing.T) {
	require.Equal(t, "true\n", runSrc(t, "1 2 < print"))
}

func TestVMListPrint(t *testing.T) {
	require.Equal(t, "[1 2 3]\n", runSrc(t, "[1 2 3] print"))
}

func TestVMFn(t *testing.T) {
	require.Equal(t, "25\n", runSrc(t, "fn sq ( dup * ) 5 sq print"))
}

func TestVMIfElse(t *testing.T) {
	require.Equal(t, "2\n", runSrc(t, "false if ( 1 print ) else ( 2 print )"))
}

func TestVMMap(t *testing.T) {
	require.Equal(t, "[2 3 4]\n", runSrc(t, "[1 2 3] (1 +) map print"))
}

func TestVMFilter(t *testing.T) {
	require.Equal(t, "[2 4]\n", runSrc(t, "[1 2 3 4] (2 % 0 =) filter print"))
}

func TestVMFold(t *testing.T) {
	require.Equal(t, "10\n", runSrc(t, "[1 2 3 4] 0 (+) fold print"))
}

func TestVMForeach(t *testing.T) {
	require.Equal(t, "1\n2\n3\n", runSrc(t, "[1 2 3] (print) foreach"))
}

func TestVMBinding(t *testing.T) {
	require.Equal(t, "3\n", runSrc(t, "1 2 [x y] (x y +) print"))
}

func TestVMHeadTailConcatPush(t *testing.T) {
	require.Equal(t, "1\n", runSrc(t, "[1 2 3] head print"))
	require.Equal(t, "[2 3]\n", runSrc(t, "[1 2 3] tail print"))
	require.Equal(t, "[1 2 3 4]\n", runSrc(t, "[1 2 3] [4] concat print"))
	require.Equal(t, "[1 2 3 4]\n", runSrc(t, "[1 2 3] 4 push print"))
}
