// Package workspace implements the sandboxed, cloneable filesystem
// contract that actors expand and evaluate against. The production
// adapter is backed by testcontainers-go: a root workspace starts from a
// tagged Docker image and records its exported file tree as the start
// snapshot, clone() commits the current container to a new image and
// starts a fresh container from it, and diff() compares the exported
// trees in process with an LCS line diff (no git). This promotes the
// teacher's integration-test container harness to a first-class
// production primitive.
package workspace

import "context"

// ExecResult is an immutable record of a command execution. A timeout
// or a dead container surfaces as a non-zero ExitCode, never as a
// returned error — only infrastructure failures (the daemon itself is
// unreachable) return an error.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Workspace is a mutable sandboxed filesystem with command execution
// and diff capability. Implementations must make Clone produce a fully
// independent instance: mutating the clone never affects the parent.
type Workspace interface {
	// Clone returns an independent copy whose subsequent mutations never
	// affect this workspace.
	Clone(ctx context.Context) (Workspace, error)

	// ReadFile returns the content of path relative to the workspace
	// working directory.
	ReadFile(ctx context.Context, path string) (string, error)

	// WriteFile writes content to path, creating parent directories as
	// needed.
	WriteFile(ctx context.Context, path, content string) error

	// Exec runs cmd via a shell in the workspace working directory.
	Exec(ctx context.Context, cmd string) (ExecResult, error)

	// Ls lists file paths under dir, relative to the workspace working
	// directory.
	Ls(ctx context.Context, dir string) ([]string, error)

	// Diff returns a unified diff of the current state against this
	// workspace's start snapshot. Diff is stable for a given final state
	// regardless of the sequence of operations that produced it.
	Diff(ctx context.Context) (string, error)

	// Close releases the resources backing the workspace (the
	// container, in the production adapter). Safe to call more than
	// once.
	Close(ctx context.Context) error
}

// DiffAgainst computes a unified diff of the given file set (path ->
// content) against a baseline file set, without needing a live
// Workspace. Used by the session layer to diff the final workspace
// state against a client-supplied `allFiles` baseline, and against the
// empty baseline for the very first ReviewResult (see spec §4.6).
func DiffAgainst(baseline, final map[string]string) (string, error) {
	return unifiedDiff(baseline, final)
}
