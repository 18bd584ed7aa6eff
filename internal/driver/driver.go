// Package driver wires the pipeline stages together: lex, parse, type-check,
// lower, then either hand the bytecode to the VM or emit it as native IR. It
// generalizes the single-file, single-phase driver the language started
// from into the four argv shapes the toolchain now supports, and is the one
// place in the module that touches the filesystem and external processes.
package driver

import (
	"bufio"
	stderrors "errors"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/mna/do/internal/bytecode"
	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/emitter"
	"github.com/mna/do/internal/lower"
	"github.com/mna/do/internal/parser"
	"github.com/mna/do/internal/types"
	"github.com/mna/do/internal/vm"
)

// Diagnostics is returned when a source file fails to lex, parse or
// type-check. Its Error string is the fully rendered diagnostic list, ready
// to print to stderr as-is.
type Diagnostics struct {
	rendered string
}

func (d *Diagnostics) Error() string { return d.rendered }

// Pipeline runs the lex-parse-typecheck-lower stages and then either the
// bytecode VM or the native (LLVM + external assembler) backend, depending
// on which method is called. The zero value is ready to use; Assembler lets
// a caller (tests, mainly) pin the external assembler instead of relying on
// DO_ASSEMBLER/the clang default.
type Pipeline struct {
	Assembler string
}

func (p *Pipeline) assembler() string {
	if p.Assembler != "" {
		return p.Assembler
	}
	if a := os.Getenv("DO_ASSEMBLER"); a != "" {
		return a
	}
	return "clang"
}

// Compile reads path, runs it through the lexer, parser, type checker and
// lowerer, and returns the resulting bytecode program. Any lex, parse or
// type error is returned as a *Diagnostics; failures to read the file are
// wrapped with errors.Wrap so the caller sees which path failed and why.
func (p *Pipeline) Compile(path string) (*bytecode.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	d := &diag.List{File: path, Src: string(src)}
	ops := parser.Parse(string(src), d)
	if d.Len() > 0 {
		return nil, &Diagnostics{rendered: d.Render()}
	}

	checker := types.New(d, false)
	typed := checker.Check(ops, true)
	if d.Len() > 0 {
		return nil, &Diagnostics{rendered: d.Render()}
	}

	return lower.New().Program(typed), nil
}

// RunInterpreted compiles path and executes it to completion on the
// bytecode VM, writing any printed output to stdout.
func (p *Pipeline) RunInterpreted(path string, stdout io.Writer) error {
	prog, err := p.Compile(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()

	machine, err := vm.New(prog, w)
	if err != nil {
		return errors.Wrap(err, "load program")
	}
	return machine.Run()
}

// EmitNative compiles path and lowers the resulting bytecode to LLVM IR,
// invoking the assembler named by the DO_ASSEMBLER environment variable
// (clang by default) to turn the emitted .ll module into a native executable at
// outPath. Compilation to IR happens in-process via llir/llvm; everything
// past IR generation is delegated to the external assembler, matching the
// "calls external assembler" behavior.
func (p *Pipeline) EmitNative(path, outPath string) error {
	prog, err := p.Compile(path)
	if err != nil {
		return err
	}

	mod := emitter.New().Emit(prog)

	llPath := outPath + ".ll"
	if err := os.WriteFile(llPath, []byte(mod.String()), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", llPath)
	}
	defer os.Remove(llPath)

	assembler := p.assembler()
	cmd := exec.Command(assembler, llPath, "-o", outPath)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s %s", assembler, llPath)
	}
	return nil
}

// RunNative compiles path to a temporary native binary and executes it,
// forwarding extraArgs and connecting stdio directly to the child process.
// It returns the child's exit code.
func (p *Pipeline) RunNative(path string, extraArgs []string) (int, error) {
	bin, err := os.CreateTemp("", "do-native-*")
	if err != nil {
		return 1, errors.Wrap(err, "create temp binary")
	}
	binPath := bin.Name()
	bin.Close()
	defer os.Remove(binPath)

	if err := p.EmitNative(path, binPath); err != nil {
		return 1, err
	}

	cmd := exec.Command(binPath, extraArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, errors.Wrapf(err, "run %s", binPath)
	}
	return 0, nil
}
