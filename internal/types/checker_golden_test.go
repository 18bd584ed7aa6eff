package types

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/filetest"
	"github.com/mna/do/internal/parser"
)

var testUpdateCheckerTests = flag.Bool("test.update-checker-tests", false, "If set, replace expected checker golden results with actual results.")

func formatTypes(ts []TypeKind) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func dumpTypedOps(ops []TypedOp, depth int, b *strings.Builder) {
	ind := strings.Repeat("  ", depth)
	for _, op := range ops {
		fmt.Fprintf(b, "%s%s ins=%s outs=%s\n", ind, op.Kind, formatTypes(op.Ins), formatTypes(op.Outs))
		if len(op.Elems) > 0 {
			dumpTypedOps(op.Elems, depth+1, b)
		}
		if len(op.Body) > 0 {
			dumpTypedOps(op.Body, depth+1, b)
		}
		if len(op.Else) > 0 {
			b.WriteString(ind)
			b.WriteString("  else:\n")
			dumpTypedOps(op.Else, depth+2, b)
		}
	}
}

func dumpTypedProgram(ops []TypedOp) string {
	var b strings.Builder
	dumpTypedOps(ops, 0, &b)
	return b.String()
}

func TestCheckGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".do") {
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}
			src := string(b)

			d := &diag.List{File: fi.Name(), Src: src}
			ops := parser.Parse(src, d)
			c := New(d, false)
			typed := c.Check(ops, true)

			filetest.DiffDump(t, fi, dumpTypedProgram(typed), resultDir, testUpdateCheckerTests)

			errOut := ""
			if d.Len() > 0 {
				errOut = d.Render() + "\n"
			}
			filetest.DiffCustom(t, fi, "errors", ".err", errOut, resultDir, testUpdateCheckerTests)
		})
	}
}
