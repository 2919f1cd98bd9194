package harness

import "testing"

func TestNewTestCaseDerivesAttributes(t *testing.T) {
	t.Parallel()

	tc := NewTestCase("basics/struct1.py")
	if tc.Path != "basics/struct1.py" {
		t.Fatalf("unexpected path: %q", tc.Path)
	}
	if tc.Base != "struct1.py" {
		t.Fatalf("unexpected base: %q", tc.Base)
	}
	if tc.Name != "struct1" {
		t.Fatalf("unexpected name: %q", tc.Name)
	}
	if got := tc.ExpPath(); got != "basics/struct1.py.exp" {
		t.Fatalf("unexpected expectation path: %q", got)
	}
}

func TestDetectSkip(t *testing.T) {
	t.Parallel()

	if got := DetectSkip(OK([]byte("SKIP\n"))); got.Kind != OutcomeSkipRequested {
		t.Fatalf("expected skip request, got kind %d", got.Kind)
	}

	// Skip marker must match the whole output exactly.
	if got := DetectSkip(OK([]byte("SKIP\nextra"))); got.Kind != OutcomeOK {
		t.Fatalf("expected OK for partial marker, got kind %d", got.Kind)
	}

	// A crash is never reinterpreted as a skip.
	if got := DetectSkip(Crashed()); got.Kind != OutcomeCrashed {
		t.Fatalf("expected crash to pass through, got kind %d", got.Kind)
	}
}

func TestOutcomeBytes(t *testing.T) {
	t.Parallel()

	if got := string(OK([]byte("2\n")).Bytes()); got != "2\n" {
		t.Fatalf("unexpected OK bytes: %q", got)
	}
	if got := string(Crashed().Bytes()); got != CrashMarker {
		t.Fatalf("unexpected crash bytes: %q", got)
	}
}
