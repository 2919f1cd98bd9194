// Package wasmexec runs test files through a WASI build of the target
// interpreter, executed in-process with wazero.
package wasmexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"mptest/internal/domain/harness"
	"mptest/internal/ports"
)

// Executor instantiates a compiled WASI module once per test file.
type Executor struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

var _ ports.Executor = (*Executor)(nil)

// New reads and compiles the WASI module at modulePath. Compilation happens
// once; Execute instantiates the compiled module afresh for every test.
func New(ctx context.Context, modulePath string) (*Executor, error) {
	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}

	return &Executor{runtime: r, compiled: compiled}, nil
}

// Execute runs the interpreter module on the test file with the file's
// directory mounted read-only as the module's root. A non-zero WASI exit
// code is a crashed outcome.
func (e *Executor) Execute(ctx context.Context, path string) (harness.Outcome, error) {
	var stdout bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName(""). // anonymous, so repeated instantiations don't collide
		WithArgs("interpreter", filepath.Base(path)).
		WithStdout(&stdout).
		WithStderr(io.Discard).
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(filepath.Dir(path), "/"))

	module, err := e.runtime.InstantiateModule(ctx, e.compiled, cfg)
	if module != nil {
		defer module.Close(ctx)
	}
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() != 0 {
				return harness.Crashed(), nil
			}
			return harness.OK(stdout.Bytes()), nil
		}
		return harness.Outcome{}, fmt.Errorf("instantiate wasm module: %w", err)
	}

	return harness.OK(stdout.Bytes()), nil
}

// Close releases the compiled module and the runtime.
func (e *Executor) Close() error {
	return e.runtime.Close(context.Background())
}
