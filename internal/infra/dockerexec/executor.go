// Package dockerexec runs the target interpreter inside one-shot Docker
// containers, one container per test file.
package dockerexec

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"mptest/internal/domain/harness"
	"mptest/internal/ports"
)

// testScriptFilename is the fixed name the test file takes inside the container.
const testScriptFilename = "test.py"

// Config describes the container image used to execute test files.
type Config struct {
	// Image is the container image holding the target interpreter.
	Image string
	// Workdir is the directory the test file is copied into. Defaults to /tmp.
	Workdir string
	// Command is the interpreter invocation; the test filename is appended.
	// Defaults to the target's bytecode-emission mode.
	Command []string
	// TimeLimit stops the container after the given duration. Zero waits forever,
	// matching the local-process behaviour.
	TimeLimit time.Duration
}

// Executor implements ports.Executor on top of the Docker SDK.
type Executor struct {
	cli      dockerClient
	cfg      Config
	pullOnce sync.Once
	pullErr  error
}

var _ ports.Executor = (*Executor)(nil)

// New creates an Executor using the environment-configured Docker daemon.
func New(cfg Config) (*Executor, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("container image must be provided")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return newExecutor(cli, cfg), nil
}

func newExecutor(cli dockerClient, cfg Config) *Executor {
	if cfg.Workdir == "" {
		cfg.Workdir = "/tmp"
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"micropython", "-X", "emit=bytecode"}
	}
	return &Executor{cli: cli, cfg: cfg}
}

// Execute copies the test file into a fresh container, runs the interpreter
// on it and captures stdout. A non-zero container exit is a crashed outcome.
func (e *Executor) Execute(ctx context.Context, path string) (harness.Outcome, error) {
	source, err := readTestFile(path)
	if err != nil {
		return harness.Outcome{}, err
	}

	if err := e.ensureImage(ctx); err != nil {
		return harness.Outcome{}, err
	}

	containerID, cleanup, err := e.createContainer(ctx)
	if err != nil {
		return harness.Outcome{}, err
	}
	defer cleanup()

	if err := e.copyTestFile(ctx, containerID, source); err != nil {
		return harness.Outcome{}, err
	}

	if err := e.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return harness.Outcome{}, fmt.Errorf("start container: %w", err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.TimeLimit > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.TimeLimit)
		defer cancel()
	}

	status, err := e.waitForExit(waitCtx, containerID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && e.cfg.TimeLimit > 0 && ctx.Err() == nil {
			e.stopContainer(containerID)
			return harness.Crashed(), nil
		}
		return harness.Outcome{}, err
	}

	logCtx := ctx
	if logCtx.Err() != nil {
		logCtx = context.Background()
	}
	stdout, err := e.fetchStdout(logCtx, containerID)
	if err != nil {
		return harness.Outcome{}, err
	}

	if status.StatusCode != 0 {
		return harness.Crashed(), nil
	}
	return harness.OK(stdout), nil
}

// Close releases the underlying Docker client resources.
func (e *Executor) Close() error {
	if e.cli == nil {
		return nil
	}
	return e.cli.Close()
}

func (e *Executor) ensureImage(ctx context.Context) error {
	e.pullOnce.Do(func() {
		reader, err := e.cli.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
		if err != nil {
			e.pullErr = fmt.Errorf("pull image %s: %w", e.cfg.Image, err)
			return
		}
		defer reader.Close()
		if _, err := io.Copy(io.Discard, reader); err != nil {
			e.pullErr = fmt.Errorf("consume pull output: %w", err)
		}
	})
	return e.pullErr
}

func (e *Executor) createContainer(ctx context.Context) (string, func(), error) {
	cmd := make([]string, 0, len(e.cfg.Command)+1)
	cmd = append(cmd, e.cfg.Command...)
	cmd = append(cmd, testScriptFilename)

	resp, err := e.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        e.cfg.Image,
			Cmd:          cmd,
			AttachStdout: true,
			AttachStderr: true,
			WorkingDir:   e.cfg.Workdir,
		},
		nil,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		_ = e.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}
	return resp.ID, cleanup, nil
}

func (e *Executor) copyTestFile(ctx context.Context, containerID string, source []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name:    testScriptFilename,
		Mode:    0o644,
		Size:    int64(len(source)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(source); err != nil {
		return fmt.Errorf("write tar contents: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}

	err := e.cli.CopyToContainer(ctx, containerID, e.cfg.Workdir, bytes.NewReader(buf.Bytes()), container.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
	if err != nil {
		return fmt.Errorf("copy test file: %w", err)
	}
	return nil
}

func (e *Executor) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := e.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (e *Executor) stopContainer(containerID string) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.cli.ContainerStop(stopCtx, containerID, container.StopOptions{})
}

func (e *Executor) fetchStdout(ctx context.Context, containerID string) ([]byte, error) {
	logs, err := e.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("demultiplex logs: %w", err)
	}
	return stdout.Bytes(), nil
}

func readTestFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test file: %w", err)
	}
	return data, nil
}
