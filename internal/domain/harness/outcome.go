package harness

// OutcomeKind tags the result of one interpreter execution.
type OutcomeKind int

const (
	// OutcomeOK means the execution completed and Output holds its captured stdout.
	OutcomeOK OutcomeKind = iota
	// OutcomeCrashed means the process exited non-zero or the device protocol failed.
	OutcomeCrashed
	// OutcomeSkipRequested means the program asked for the test to be skipped.
	OutcomeSkipRequested
)

// Wire-level markers used by interpreters that can only signal outcomes
// in band, over their stdout. They are decoded into OutcomeKind at the
// executor boundary so legitimate output can never be confused with them
// anywhere else.
const (
	CrashMarker = "CRASH"
	SkipMarker  = "SKIP\n"
)

// Outcome is the tagged result of executing a test file.
type Outcome struct {
	Kind OutcomeKind
	// Output holds captured stdout. Only meaningful when Kind is OutcomeOK.
	Output []byte
}

// OK wraps captured stdout in a completed outcome.
func OK(output []byte) Outcome {
	return Outcome{Kind: OutcomeOK, Output: output}
}

// Crashed reports an execution that exited non-zero or failed at the protocol level.
func Crashed() Outcome {
	return Outcome{Kind: OutcomeCrashed}
}

// SkipRequested reports an execution whose program asked to be skipped.
func SkipRequested() Outcome {
	return Outcome{Kind: OutcomeSkipRequested}
}

// DetectSkip rewrites an OK outcome whose entire output is the skip marker
// into a skip request. Applied to target output only; reference output is
// never a skip channel.
func DetectSkip(o Outcome) Outcome {
	if o.Kind == OutcomeOK && string(o.Output) == SkipMarker {
		return SkipRequested()
	}
	return o
}

// Bytes renders the outcome the way the comparison step consumes it:
// OK output verbatim, a crash as the crash marker.
func (o Outcome) Bytes() []byte {
	if o.Kind == OutcomeCrashed {
		return []byte(CrashMarker)
	}
	return o.Output
}
