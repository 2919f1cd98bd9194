package harness

// Summary aggregates the results of one runner invocation.
type Summary struct {
	// TestCount is the number of tests that reached the comparison step.
	TestCount int
	// TestcaseCount is the total number of expected-output lines across those
	// tests, reported for granularity only.
	TestcaseCount int
	// Passed counts tests whose actual output matched the expected output
	// byte for byte.
	Passed int
	// Failed and Skipped hold the derived names of the corresponding tests,
	// in execution order.
	Failed  []string
	Skipped []string
}

// Success reports whether the invocation should exit zero.
func (s Summary) Success() bool {
	return len(s.Failed) == 0
}
