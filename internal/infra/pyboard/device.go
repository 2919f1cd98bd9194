// Package pyboard executes test files on a serial-attached board through
// its raw REPL: a command mode that accepts source code for immediate
// execution and returns the printed output.
package pyboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"

	"mptest/internal/domain/harness"
	"mptest/internal/ports"
)

const (
	ctrlA = 0x01 // enter raw REPL
	ctrlB = 0x02 // leave raw REPL
	ctrlC = 0x03 // interrupt running program
	ctrlD = 0x04 // end of transmission / soft reboot

	rawREPLBanner = "raw REPL; CTRL-B to exit\r\n>"

	// Source is transmitted in small chunks so the board's input buffer
	// never overflows.
	chunkSize = 256

	readTimeout = 10 * time.Second
)

// ProtocolError reports a failed raw-REPL exchange with the device.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pyboard %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

type serialPort interface {
	io.ReadWriteCloser
}

// Device executes test files on a serial-attached board.
type Device struct {
	port serialPort
}

var _ ports.Executor = (*Device)(nil)

// Open connects to the board on the given serial port, interrupts whatever
// is running and switches it into raw REPL mode.
func Open(device string, baudRate int) (*Device, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	d := newDevice(port)
	if err := d.enterRawREPL(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return d, nil
}

func newDevice(port serialPort) *Device {
	return &Device{port: port}
}

// Execute transmits the test file's contents to the board, runs it and
// captures the printed output with line endings normalized to LF. A device
// exception is reported as a crashed outcome; protocol breakdowns are
// returned as *ProtocolError.
func (d *Device) Execute(ctx context.Context, path string) (harness.Outcome, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return harness.Outcome{}, fmt.Errorf("read test file: %w", err)
	}

	output, errOutput, err := d.exec(ctx, source)
	if err != nil {
		return harness.Outcome{}, err
	}
	if len(errOutput) > 0 {
		return harness.Crashed(), nil
	}

	return harness.OK(normalizeNewlines(output)), nil
}

// Close returns the board to its friendly REPL and releases the port.
func (d *Device) Close() error {
	_, writeErr := d.port.Write([]byte{'\r', ctrlB})
	closeErr := d.port.Close()
	return errors.Join(writeErr, closeErr)
}

func (d *Device) enterRawREPL() error {
	// Interrupt twice in case the board is blocked inside a running program.
	if _, err := d.port.Write([]byte{'\r', ctrlC, ctrlC}); err != nil {
		return &ProtocolError{Op: "interrupt", Err: err}
	}
	if _, err := d.port.Write([]byte{'\r', ctrlA}); err != nil {
		return &ProtocolError{Op: "enter raw repl", Err: err}
	}
	if _, err := d.readUntil(context.Background(), []byte(rawREPLBanner)); err != nil {
		return &ProtocolError{Op: "enter raw repl", Err: err}
	}
	return nil
}

// exec sends one program through the raw REPL and returns its normal and
// error output streams.
func (d *Device) exec(ctx context.Context, source []byte) (output, errOutput []byte, err error) {
	for off := 0; off < len(source); off += chunkSize {
		end := off + chunkSize
		if end > len(source) {
			end = len(source)
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, &ProtocolError{Op: "transmit", Err: err}
		}
		if _, err := d.port.Write(source[off:end]); err != nil {
			return nil, nil, &ProtocolError{Op: "transmit", Err: err}
		}
	}

	if _, err := d.port.Write([]byte{ctrlD}); err != nil {
		return nil, nil, &ProtocolError{Op: "execute", Err: err}
	}

	ack, err := d.readExact(ctx, 2)
	if err != nil {
		return nil, nil, &ProtocolError{Op: "execute", Err: err}
	}
	if !bytes.Equal(ack, []byte("OK")) {
		return nil, nil, &ProtocolError{Op: "execute", Err: fmt.Errorf("expected OK, got %q", ack)}
	}

	output, err = d.readUntil(ctx, []byte{ctrlD})
	if err != nil {
		return nil, nil, &ProtocolError{Op: "read output", Err: err}
	}
	errOutput, err = d.readUntil(ctx, []byte{ctrlD})
	if err != nil {
		return nil, nil, &ProtocolError{Op: "read error output", Err: err}
	}

	// Consume the prompt so the next exec starts from a clean stream.
	if _, err := d.readUntil(ctx, []byte{'>'}); err != nil {
		return nil, nil, &ProtocolError{Op: "read prompt", Err: err}
	}

	return output, errOutput, nil
}

// readUntil accumulates bytes until delim appears, returning everything
// before it.
func (d *Device) readUntil(ctx context.Context, delim []byte) ([]byte, error) {
	var buf bytes.Buffer
	single := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := d.port.Read(single)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("timeout waiting for %q", delim)
		}

		buf.WriteByte(single[0])
		if bytes.HasSuffix(buf.Bytes(), delim) {
			return buf.Bytes()[:buf.Len()-len(delim)], nil
		}
	}
}

func (d *Device) readExact(ctx context.Context, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	single := make([]byte, 1)
	for len(buf) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		read, err := d.port.Read(single)
		if err != nil {
			return nil, err
		}
		if read == 0 {
			return nil, fmt.Errorf("timeout reading %d bytes", n)
		}
		buf = append(buf, single[0])
	}
	return buf, nil
}

func normalizeNewlines(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}
