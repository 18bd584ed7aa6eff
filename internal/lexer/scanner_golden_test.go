package lexer

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/filetest"
)

var testUpdateScannerTests = flag.Bool("test.update-scanner-tests", false, "If set, replace expected scanner golden results with actual results.")

func dumpTokens(toks []TokenValue) string {
	var b strings.Builder
	for _, tk := range toks {
		fmt.Fprintf(&b, "%-14s %-10q @%d:%d\n", tk.Type.String(), tk.Lexeme, tk.Span.Offset, tk.Span.Length)
	}
	return b.String()
}

func TestScanGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".do") {
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}
			src := string(b)

			d := &diag.List{File: fi.Name(), Src: src}
			toks := ScanAll(src, d)

			filetest.DiffDump(t, fi, dumpTokens(toks), resultDir, testUpdateScannerTests)

			errOut := ""
			if d.Len() > 0 {
				errOut = d.Render() + "\n"
			}
			filetest.DiffCustom(t, fi, "errors", ".err", errOut, resultDir, testUpdateScannerTests)
		})
	}
}
