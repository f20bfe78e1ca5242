package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/testcontainers/testcontainers-go"
)

var imageSeq atomic.Int64

// ContainerWorkspace is the testcontainers-go backed Workspace
// implementation. A root workspace is created once per actor run from
// a base image; every expansion clones it into a child node's own
// container.
type ContainerWorkspace struct {
	mu sync.Mutex

	baseImage string
	workdir   string
	container testcontainers.Container
	docker    client.APIClient

	// startFiles is the exported initial snapshot (the "start"), held
	// in memory as path -> content and used as the left side of Diff.
	startFiles map[string]string
}

// NewContainerWorkspace starts a root workspace from baseImage.
func NewContainerWorkspace(ctx context.Context, baseImage, workdir string) (*ContainerWorkspace, error) {
	req := testcontainers.ContainerRequest{
		Image:      baseImage,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: workdir,
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start workspace container: %w", err)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	w := &ContainerWorkspace{
		baseImage: baseImage,
		workdir:   workdir,
		container: c,
		docker:    cli,
	}

	snapshot, err := w.exportTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("export start snapshot: %w", err)
	}
	w.startFiles = snapshot
	return w, nil
}

// Clone commits the running container to a new tagged image and starts
// a fresh container from it. The clone's start snapshot is inherited
// unchanged (it is still diffed against the original root's state).
func (w *ContainerWorkspace) Clone(ctx context.Context) (Workspace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	containerID := w.container.GetContainerID()
	tag := fmt.Sprintf("agentforge-clone:%d", imageSeq.Add(1))

	resp, err := w.docker.ContainerCommit(ctx, containerID, container.CommitOptions{Reference: tag})
	if err != nil {
		return nil, fmt.Errorf("commit workspace container: %w", err)
	}
	_ = resp

	req := testcontainers.ContainerRequest{
		Image:      tag,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: w.workdir,
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start cloned workspace container: %w", err)
	}

	clone := &ContainerWorkspace{
		baseImage:  tag,
		workdir:    w.workdir,
		container:  c,
		docker:     w.docker,
		startFiles: w.startFiles,
	}
	return clone, nil
}

// ReadFile reads a file's content via `cat` inside the container.
func (w *ContainerWorkspace) ReadFile(ctx context.Context, path string) (string, error) {
	res, err := w.Exec(ctx, "cat "+shellQuote(path))
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("read %s: %s", path, res.Stderr)
	}
	return res.Stdout, nil
}

// WriteFile writes content to path, creating parent directories first.
func (w *ContainerWorkspace) WriteFile(ctx context.Context, path, content string) error {
	dir := parentDir(path)
	if dir != "" {
		if _, err := w.Exec(ctx, "mkdir -p "+shellQuote(dir)); err != nil {
			return err
		}
	}
	cmd := fmt.Sprintf("cat > %s << 'AGENTFORGE_EOF'\n%s\nAGENTFORGE_EOF", shellQuote(path), content)
	res, err := w.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("write %s: %s", path, res.Stderr)
	}
	return nil
}

// Exec runs cmd through `sh -c` inside the container. All captured
// output is returned in Stdout; Stderr is always empty (see
// execInContainer).
func (w *ContainerWorkspace) Exec(ctx context.Context, cmd string) (ExecResult, error) {
	code, stdout, stderr, err := execInContainer(ctx, w.container, cmd)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec in workspace: %w", err)
	}
	return ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
}

// Ls lists paths under dir relative to the workspace.
func (w *ContainerWorkspace) Ls(ctx context.Context, dir string) ([]string, error) {
	res, err := w.Exec(ctx, "find "+shellQuote(dir)+" -type f")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ls %s: %s", dir, res.Stderr)
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// Diff exports the current tree and diffs it against the snapshot
// captured when this workspace (or its root ancestor) was created.
func (w *ContainerWorkspace) Diff(ctx context.Context) (string, error) {
	current, err := w.exportTree(ctx)
	if err != nil {
		return "", fmt.Errorf("export current tree: %w", err)
	}
	return unifiedDiff(w.startFiles, current)
}

// Close terminates the backing container.
func (w *ContainerWorkspace) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.container == nil {
		return nil
	}
	err := w.container.Terminate(ctx)
	w.container = nil
	return err
}

// exportTree walks the workspace directory and reads every file's
// content, mirroring the external sandbox's "compute git diff" contract
// via `find` + `cat` rather than shelling out to a git checkout.
func (w *ContainerWorkspace) exportTree(ctx context.Context) (map[string]string, error) {
	paths, err := w.Ls(ctx, w.workdir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		content, err := w.ReadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		rel := strings.TrimPrefix(p, strings.TrimSuffix(w.workdir, "/")+"/")
		out[rel] = content
	}
	return out, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
