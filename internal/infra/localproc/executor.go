package localproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"mptest/internal/domain/harness"
	"mptest/internal/ports"
)

// Executor runs an interpreter as a local subprocess, one test file per call.
type Executor struct {
	bin  string
	args []string
	env  []string
}

var _ ports.Executor = (*Executor)(nil)

// New builds an executor that invokes bin with the given extra arguments
// placed before the test file path.
func New(bin string, args ...string) *Executor {
	return &Executor{bin: bin, args: args}
}

// NewReference builds an executor for the reference interpreter. Bytecode
// cache writes are disabled so .pyc files never land next to the fixtures.
func NewReference(bin string) *Executor {
	return &Executor{
		bin:  bin,
		args: []string{"-B"},
		env:  append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1"),
	}
}

// NewTarget builds an executor for the target interpreter in its
// bytecode-emission mode.
func NewTarget(bin string) *Executor {
	return &Executor{
		bin:  bin,
		args: []string{"-X", "emit=bytecode"},
	}
}

// Execute runs the interpreter on the test file and captures its stdout.
// A non-zero exit is reported as a crashed outcome; a failure to launch the
// process at all is returned as an error.
func (e *Executor) Execute(ctx context.Context, path string) (harness.Outcome, error) {
	args := make([]string, 0, len(e.args)+1)
	args = append(args, e.args...)
	args = append(args, path)

	cmd := exec.CommandContext(ctx, e.bin, args...)
	if e.env != nil {
		cmd.Env = e.env
	}

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return harness.Crashed(), nil
		}
		return harness.Outcome{}, fmt.Errorf("run %s: %w", e.bin, err)
	}

	return harness.OK(output), nil
}

// Close implements ports.Executor; a subprocess executor holds no resources.
func (e *Executor) Close() error {
	return nil
}
