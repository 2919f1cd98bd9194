package kafkareport

import (
	"encoding/json"
	"fmt"
	"time"

	"mptest/internal/domain/harness"
)

// reportEnvelope is the wire format for one test result. Expected and actual
// output are carried only for failures so pass-heavy runs stay small.
type reportEnvelope struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	Expected   string    `json:"expected,omitempty"`
	Actual     string    `json:"actual,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func encodeTestReport(report harness.TestReport) ([]byte, error) {
	envelope := reportEnvelope{
		Name:       report.Name,
		Path:       report.Path,
		Status:     string(report.Status),
		DurationMs: report.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}

	if report.Status == harness.StatusFail {
		envelope.Expected = string(report.Expected)
		envelope.Actual = string(report.Actual)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return payload, nil
}
