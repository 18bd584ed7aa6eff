package parser

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/filetest"
)

var testUpdateParserTests = flag.Bool("test.update-parser-tests", false, "If set, replace expected parser golden results with actual results.")

func dumpOps(ops []ast.Op, depth int, b *strings.Builder) {
	ind := strings.Repeat("  ", depth)
	for _, op := range ops {
		b.WriteString(ind)
		b.WriteString(op.Kind.String())
		switch op.Kind {
		case ast.PushInt:
			fmt.Fprintf(b, " %d", op.IntVal)
		case ast.PushBool:
			fmt.Fprintf(b, " %v", op.BoolVal)
		case ast.Ident, ast.Fn:
			fmt.Fprintf(b, " %s", op.Name)
		case ast.Binding:
			fmt.Fprintf(b, " %v", op.Names)
		}
		b.WriteByte('\n')
		if len(op.Elems) > 0 {
			dumpOps(op.Elems, depth+1, b)
		}
		if len(op.Body) > 0 {
			dumpOps(op.Body, depth+1, b)
		}
		if len(op.Else) > 0 {
			b.WriteString(ind)
			b.WriteString("  else:\n")
			dumpOps(op.Else, depth+2, b)
		}
	}
}

func dumpProgram(ops []ast.Op) string {
	var b strings.Builder
	dumpOps(ops, 0, &b)
	return b.String()
}

func TestParseGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".do") {
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}
			src := string(b)

			var d diag.List
			d.File, d.Src = fi.Name(), src
			ops := Parse(src, &d)

			filetest.DiffDump(t, fi, dumpProgram(ops), resultDir, testUpdateParserTests)

			errOut := ""
			if d.Len() > 0 {
				errOut = d.Render() + "\n"
			}
			filetest.DiffCustom(t, fi, "errors", ".err", errOut, resultDir, testUpdateParserTests)
		})
	}
}
