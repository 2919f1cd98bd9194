package harness

import "time"

// Status classifies the terminal state of a single test.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// TestReport captures the outcome of a single test for external publication.
type TestReport struct {
	Name     string
	Path     string
	Status   Status
	Expected []byte
	Actual   []byte
	Duration time.Duration
}
