package driver

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.do")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileAndRunInterpreted(t *testing.T) {
	path := writeTemp(t, "1 2 + print")
	var out bytes.Buffer
	p := &Pipeline{}
	require.NoError(t, p.RunInterpreted(path, &out))
	require.Equal(t, "3\n", out.String())
}

func TestRunInterpretedPropagatesDiagnostics(t *testing.T) {
	path := writeTemp(t, "1 true +")
	var out bytes.Buffer
	p := &Pipeline{}
	err := p.RunInterpreted(path, &out)
	require.Error(t, err)
	var diags *Diagnostics
	require.ErrorAs(t, err, &diags)
	require.Contains(t, diags.Error(), "error:")
}

func TestCompileMissingFileWrapsError(t *testing.T) {
	p := &Pipeline{}
	_, err := p.Compile(filepath.Join(t.TempDir(), "missing.do"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.do")
}

func TestEmitNativeProducesIR(t *testing.T) {
	path := writeTemp(t, "1 2 + print")
	outPath := filepath.Join(t.TempDir(), "prog")

	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not available on PATH, skipping native emission")
	}
	p := &Pipeline{}
	require.NoError(t, p.EmitNative(path, outPath))
	_, err := os.Stat(outPath)
	require.NoError(t, err)
}
