package maincmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.do")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestMainRunsInterpretedMode(t *testing.T) {
	path := writeTemp(t, "1 2 + print")
	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	code := c.Main([]string{"do", "-i", path}, mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.Success, code)
	require.Equal(t, "3\n", stdout.String())
}

func TestMainReportsDiagnosticsNonZero(t *testing.T) {
	path := writeTemp(t, "1 true +")
	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	code := c.Main([]string{"do", "-i", path}, mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.Failure, code)
	require.Contains(t, stderr.String(), "error:")
}

func TestMainUnknownShapePrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	code := c.Main([]string{"do", "-x", "-y", "-z"}, mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.InvalidArgs, code)
	require.Contains(t, stderr.String(), "usage:")
}

func TestMainNoArgsRunsReplUntilQuit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	code := c.Main([]string{"do"}, mainer.Stdio{
		Stdin:  strings.NewReader("1 2 + print\nquit\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.Equal(t, mainer.Success, code)
	require.Contains(t, stdout.String(), "3\n")
}
