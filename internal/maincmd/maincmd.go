// Package maincmd implements the command-line front end: it turns argv into
// one of the pipeline's four supported shapes (compile, interpret, run
// native, or REPL) and reports failures the way mainer's Cmd contract
// expects.
package maincmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"

	"github.com/mna/do/internal/driver"
	"github.com/mna/do/internal/repl"
)

const binName = "do"

var usage = fmt.Sprintf(`usage: %s <file>.do        compile to native assembly
       %s -r <file>.do [-- <arg>...]   compile and run natively
       %s -i <file>.do      run under the bytecode VM
       %s                   interactive REPL
`, binName, binName, binName, binName)

// Cmd holds the build metadata mainer.Cmd implementations conventionally
// carry; do has no --version flag today but the fields are kept so the
// binary can grow one without changing the Main signature.
type Cmd struct {
	BuildVersion string
	BuildDate    string
}

// Main dispatches argv (including the program name, argv[0]) to the right
// pipeline mode and returns the process exit code.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	argv := args[1:]

	pipeline := &driver.Pipeline{}

	switch {
	case len(argv) == 0:
		if err := repl.Run(stdio.Stdin, stdio.Stdout); err != nil {
			fmt.Fprintf(stdio.Stderr, "error: %v\n", err)
			return mainer.Failure
		}
		return mainer.Success

	case argv[0] == "-i":
		if len(argv) != 2 {
			fmt.Fprint(stdio.Stderr, usage)
			return mainer.InvalidArgs
		}
		if err := pipeline.RunInterpreted(argv[1], stdio.Stdout); err != nil {
			fmt.Fprintf(stdio.Stderr, "%v\n", err)
			return mainer.Failure
		}
		return mainer.Success

	case argv[0] == "-r":
		if len(argv) < 2 {
			fmt.Fprint(stdio.Stderr, usage)
			return mainer.InvalidArgs
		}
		path := argv[1]
		extra := argv[2:]
		if len(extra) > 0 && extra[0] == "--" {
			extra = extra[1:]
		}
		code, err := pipeline.RunNative(path, extra)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%v\n", err)
			return mainer.Failure
		}
		return mainer.ExitCode(code)

	case len(argv) == 1 && !strings.HasPrefix(argv[0], "-"):
		path := argv[0]
		out := strings.TrimSuffix(path, filepath.Ext(path))
		if err := pipeline.EmitNative(path, out); err != nil {
			fmt.Fprintf(stdio.Stderr, "%v\n", err)
			return mainer.Failure
		}
		return mainer.Success

	default:
		fmt.Fprint(stdio.Stderr, usage)
		return mainer.InvalidArgs
	}
}
