package dockerexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeDockerClient scripts container lifecycles without a daemon.
type fakeDockerClient struct {
	mu          sync.Mutex
	nextID      int
	exitCode    int64
	stdout      string
	stderr      string
	blockWait   bool
	imagePulls  []string
	createCalls []*container.Config
	copyCalls   []copyCall
	started     []string
	removed     []string
	stopped     []string
	closed      bool
}

type copyCall struct {
	containerID string
	path        string
	data        []byte
}

func (f *fakeDockerClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.imagePulls = append(f.imagePulls, ref)
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerClient) ContainerCreate(_ context.Context, config *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *specs.Platform, _ string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.createCalls = append(f.createCalls, config)
	return container.CreateResponse{ID: fmt.Sprintf("container-%d", f.nextID)}, nil
}

func (f *fakeDockerClient) ContainerRemove(_ context.Context, containerID string, _ container.RemoveOptions) error {
	f.mu.Lock()
	f.removed = append(f.removed, containerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) CopyToContainer(_ context.Context, containerID, dstPath string, content io.Reader, _ container.CopyToContainerOptions) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.copyCalls = append(f.copyCalls, copyCall{containerID: containerID, path: dstPath, data: data})
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	f.mu.Lock()
	f.started = append(f.started, containerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	f.mu.Lock()
	block := f.blockWait
	exitCode := f.exitCode
	f.mu.Unlock()

	if block {
		go func() {
			<-ctx.Done()
			errCh <- ctx.Err()
		}()
	} else {
		statusCh <- container.WaitResponse{StatusCode: exitCode}
	}
	return statusCh, errCh
}

func (f *fakeDockerClient) ContainerLogs(_ context.Context, _ string, _ container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	f.mu.Lock()
	stdout, stderr := f.stdout, f.stderr
	f.mu.Unlock()

	if stdout != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout)); err != nil {
			return nil, err
		}
	}
	if stderr != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr)); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDockerClient) ContainerStop(_ context.Context, containerID string, _ container.StopOptions) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, containerID)
	f.mu.Unlock()
	return nil
}
