package ports

import (
	"context"

	"mptest/internal/domain/harness"
)

// ReportPublisher publishes per-test reports to an external system.
type ReportPublisher interface {
	PublishTestReport(ctx context.Context, report harness.TestReport) error
	Close() error
}
