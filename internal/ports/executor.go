package ports

import (
	"context"

	"mptest/internal/domain/harness"
)

// Executor runs a single test file through an interpreter and captures its output.
//
// Implementations report an abnormal interpreter exit as a crashed outcome.
// Errors are reserved for failures outside the interpreter itself (launch
// failure, device protocol breakdown); the runner converts those into a
// crashed outcome at the per-test boundary so one test never aborts a batch.
type Executor interface {
	Execute(ctx context.Context, path string) (harness.Outcome, error)
	Close() error
}
