package pyboard

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mptest/internal/domain/harness"
)

// fakePort serves scripted device responses and records everything written.
type fakePort struct {
	reads  bytes.Buffer
	writes bytes.Buffer
	closed bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	return f.reads.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	return f.writes.Write(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

// script appends one raw-REPL exec response: the OK handshake, the program
// output, the error output and the trailing prompt.
func (f *fakePort) script(output, errOutput string) {
	f.reads.WriteString("OK")
	f.reads.WriteString(output)
	f.reads.WriteByte(ctrlD)
	f.reads.WriteString(errOutput)
	f.reads.WriteByte(ctrlD)
	f.reads.WriteByte('>')
}

func writeTestSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.py")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test source: %v", err)
	}
	return path
}

func TestEnterRawREPL(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	port.reads.WriteString("junk from running program\r\n" + rawREPLBanner)

	device := newDevice(port)
	if err := device.enterRawREPL(); err != nil {
		t.Fatalf("enterRawREPL returned error: %v", err)
	}

	written := port.writes.Bytes()
	if !bytes.Contains(written, []byte{ctrlC, ctrlC}) {
		t.Fatal("expected double interrupt to be sent")
	}
	if !bytes.Contains(written, []byte{'\r', ctrlA}) {
		t.Fatal("expected raw REPL entry sequence to be sent")
	}
}

func TestExecuteCapturesNormalizedOutput(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	port.script("hello\r\nworld\r\n", "")
	device := newDevice(port)

	path := writeTestSource(t, "print('hello')\nprint('world')\n")
	outcome, err := device.Execute(context.Background(), path)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome.Kind != harness.OutcomeOK {
		t.Fatalf("expected OK outcome, got kind %d", outcome.Kind)
	}
	if got := string(outcome.Output); got != "hello\nworld\n" {
		t.Fatalf("unexpected output: %q", got)
	}

	written := port.writes.Bytes()
	if !bytes.Contains(written, []byte("print('hello')")) {
		t.Fatal("expected source to be transmitted")
	}
	if written[len(written)-1] != ctrlD {
		t.Fatal("expected transmission to end with EOT")
	}
}

func TestExecuteDeviceExceptionIsCrash(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	port.script("", "Traceback (most recent call last):\r\nNameError: name 'x' isn't defined\r\n")
	device := newDevice(port)

	path := writeTestSource(t, "x\n")
	outcome, err := device.Execute(context.Background(), path)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome.Kind != harness.OutcomeCrashed {
		t.Fatalf("expected crashed outcome, got kind %d", outcome.Kind)
	}
}

func TestExecuteBadHandshakeIsProtocolError(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	port.reads.WriteString("??garbage")
	device := newDevice(port)

	path := writeTestSource(t, "print(1)\n")
	_, err := device.Execute(context.Background(), path)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
	if protoErr.Op != "execute" {
		t.Fatalf("unexpected op: %q", protoErr.Op)
	}
}

func TestExecuteTruncatedStreamIsProtocolError(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	port.reads.WriteString("OKpartial output without terminator")
	device := newDevice(port)

	path := writeTestSource(t, "print(1)\n")
	_, err := device.Execute(context.Background(), path)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestCloseLeavesRawREPL(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	device := newDevice(port)

	if err := device.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !bytes.Equal(port.writes.Bytes(), []byte{'\r', ctrlB}) {
		t.Fatalf("expected raw REPL exit sequence, got %q", port.writes.Bytes())
	}
	if !port.closed {
		t.Fatal("expected port to be closed")
	}
}
