// Package repl implements the interactive read-check-lower-run loop: one
// line of source at a time, with the operand stack, heap, locals and
// function/block table all persisting across lines. A line that fails to
// lex, parse or type-check is rejected and rolled back without disturbing
// anything a previous line already committed.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/lower"
	"github.com/mna/do/internal/parser"
	"github.com/mna/do/internal/types"
	"github.com/mna/do/internal/vm"
)

const prompt = "do> "

// Run drives the loop, reading lines from in and writing the prompt,
// diagnostics and any program output to out, until in is exhausted or a
// line is exactly "quit" or "exit".
func Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	checker := types.New(&diag.List{File: "<repl>"}, true)
	lowerer := lower.New()
	var machine *vm.VM

	for {
		fmt.Fprint(w, prompt)
		w.Flush()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		if err := evalLine(w, checker, lowerer, &machine, line); err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		w.Flush()
	}
}

// evalLine lexes, parses, type-checks, lowers and runs one line, restoring
// the checker's type stack if anything before execution fails so a bad
// line never corrupts the session.
func evalLine(w *bufio.Writer, checker *types.Checker, lowerer *lower.Lowerer, machine **vm.VM, line string) error {
	d := &diag.List{File: "<repl>", Src: line}

	ops := parser.Parse(line, d)
	if d.Len() > 0 {
		fmt.Fprintln(w, d.Render())
		return nil
	}

	checkpoint := checker.Snapshot()
	checker.SetDiag(d)
	typed := checker.Check(ops, false)
	if d.Len() > 0 {
		fmt.Fprintln(w, d.Render())
		checker.Restore(checkpoint)
		return nil
	}

	prog := lowerer.Program(typed)

	if *machine == nil {
		m, err := vm.New(prog, w)
		if err != nil {
			return err
		}
		*machine = m
	} else if err := (*machine).Extend(prog); err != nil {
		return err
	}

	return (*machine).Run()
}
