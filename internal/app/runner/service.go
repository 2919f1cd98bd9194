package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mptest/internal/domain/harness"
	"mptest/internal/ports"
)

// Config controls per-test behaviour of the Service.
type Config struct {
	// ArtifactDir is where failure artifacts (<name>.exp / <name>.out) are
	// written. Empty means the current working directory.
	ArtifactDir string
	// DoubleExpNewlines rewrites LF to CRLF in cached expectation files before
	// comparison, for platforms whose interpreters emit CRLF line endings.
	DoubleExpNewlines bool
	// CISkips activates Exclusions: listed test paths are skipped before any
	// interpreter is invoked.
	CISkips bool
	// Exclusions maps test file paths (as discovered) to be skipped under CISkips.
	Exclusions map[string]struct{}
	// Out receives the per-test status lines and the final summary.
	// Nil means os.Stdout.
	Out io.Writer
}

// Service runs test files against a target executor, resolving expected
// output from cached expectation files or a reference executor, and
// aggregates pass/fail/skip results.
type Service struct {
	cfg       Config
	reference ports.Executor
	target    ports.Executor
	publisher ports.ReportPublisher
	summary   harness.Summary
}

// NewService constructs a Service. publisher may be nil, in which case
// reports are not published anywhere.
func NewService(cfg Config, reference, target ports.Executor, publisher ports.ReportPublisher) *Service {
	return &Service{
		cfg:       cfg,
		reference: reference,
		target:    target,
		publisher: publisher,
	}
}

// Run executes every test file in order. Interpreter crashes and skip
// requests are absorbed into the per-test result; only fixture-level errors
// (unreadable expectation file, unwritable artifact) abort the batch.
func (s *Service) Run(ctx context.Context, files []string) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runOne(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runOne(ctx context.Context, file string) error {
	test := harness.NewTestCase(file)

	if s.cfg.CISkips {
		if _, excluded := s.cfg.Exclusions[test.Path]; excluded {
			s.recordSkip(test)
			return nil
		}
	}

	start := time.Now()

	expected, err := s.expectedOutput(ctx, test)
	if err != nil {
		return err
	}

	actual := harness.DetectSkip(s.execute(ctx, s.target, test))
	if actual.Kind == harness.OutcomeSkipRequested {
		s.recordSkip(test)
		return nil
	}

	expectedBytes := expected.Bytes()
	actualBytes := actual.Bytes()

	s.summary.TestcaseCount += countLines(expectedBytes)

	report := harness.TestReport{
		Name:     test.Name,
		Path:     test.Path,
		Duration: time.Since(start),
	}

	if bytes.Equal(expectedBytes, actualBytes) {
		fmt.Fprintf(s.out(), "pass %s\n", test.Path)
		s.summary.Passed++
		s.removeArtifacts(test)
		report.Status = harness.StatusPass
	} else {
		fmt.Fprintf(s.out(), "FAIL %s\n", test.Path)
		if err := s.writeArtifacts(test, expectedBytes, actualBytes); err != nil {
			return err
		}
		s.summary.Failed = append(s.summary.Failed, test.Name)
		report.Status = harness.StatusFail
		report.Expected = expectedBytes
		report.Actual = actualBytes
	}
	s.summary.TestCount++

	s.publish(ctx, report)
	return nil
}

// expectedOutput resolves the expected output for a test: the cached
// expectation file verbatim if one exists, otherwise a reference executor run.
func (s *Service) expectedOutput(ctx context.Context, test harness.TestCase) (harness.Outcome, error) {
	data, err := os.ReadFile(test.ExpPath())
	if err == nil {
		if s.cfg.DoubleExpNewlines {
			data = bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
		}
		return harness.OK(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return harness.Outcome{}, fmt.Errorf("read expectation file: %w", err)
	}

	return s.execute(ctx, s.reference, test), nil
}

// execute runs the test through an executor, converting launch and protocol
// failures into a crashed outcome so a single test never aborts the batch.
func (s *Service) execute(ctx context.Context, exec ports.Executor, test harness.TestCase) harness.Outcome {
	outcome, err := exec.Execute(ctx, test.Path)
	if err != nil {
		log.Printf("warning: %s: %v", test.Path, err)
		return harness.Crashed()
	}
	return outcome
}

func (s *Service) recordSkip(test harness.TestCase) {
	fmt.Fprintf(s.out(), "skip %s\n", test.Path)
	s.summary.Skipped = append(s.summary.Skipped, test.Name)
}

func (s *Service) writeArtifacts(test harness.TestCase, expected, actual []byte) error {
	if err := os.WriteFile(s.artifactPath(test, ".exp"), expected, 0o644); err != nil {
		return fmt.Errorf("write expected-output artifact: %w", err)
	}
	if err := os.WriteFile(s.artifactPath(test, ".out"), actual, 0o644); err != nil {
		return fmt.Errorf("write actual-output artifact: %w", err)
	}
	return nil
}

// removeArtifacts deletes artifacts left behind by a prior failing run.
func (s *Service) removeArtifacts(test harness.TestCase) {
	for _, suffix := range []string{".exp", ".out"} {
		if err := os.Remove(s.artifactPath(test, suffix)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("warning: remove stale artifact: %v", err)
		}
	}
}

func (s *Service) artifactPath(test harness.TestCase, suffix string) string {
	return filepath.Join(s.cfg.ArtifactDir, test.Name+suffix)
}

func (s *Service) publish(ctx context.Context, report harness.TestReport) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTestReport(ctx, report); err != nil {
		log.Printf("warning: publish report for %s: %v", report.Path, err)
	}
}

// Summarize prints the final counts and reports overall success.
func (s *Service) Summarize() bool {
	out := s.out()
	fmt.Fprintf(out, "%d tests performed (%d individual testcases)\n", s.summary.TestCount, s.summary.TestcaseCount)
	fmt.Fprintf(out, "%d tests passed\n", s.summary.Passed)
	if len(s.summary.Skipped) > 0 {
		fmt.Fprintf(out, "%d tests skipped: %s\n", len(s.summary.Skipped), strings.Join(s.summary.Skipped, " "))
	}
	if len(s.summary.Failed) > 0 {
		fmt.Fprintf(out, "%d tests failed: %s\n", len(s.summary.Failed), strings.Join(s.summary.Failed, " "))
	}
	return s.summary.Success()
}

// Summary returns a copy of the aggregated results so far.
func (s *Service) Summary() harness.Summary {
	return s.summary
}

// Close releases the executors and the publisher, if any.
func (s *Service) Close() error {
	errs := []error{
		s.reference.Close(),
		s.target.Close(),
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) out() io.Writer {
	if s.cfg.Out != nil {
		return s.cfg.Out
	}
	return os.Stdout
}

// countLines counts output lines the way the testcase counter expects:
// a trailing newline does not open a new line.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
