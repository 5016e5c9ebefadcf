package tatara

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Executor provides a consistent interface for invoking the external
// compiler, linter, and packaging tools with a working directory and an
// environment, capturing their diagnostics.
type Executor struct {
	Context           context.Context // context for cancellation
	ApplyIdlePriority bool            // apply nice -n 19 to this specific command
	Quiet             bool            // suppress live stdout/stderr streaming

	// runner can be swapped in tests so no external tool is required.
	runner func(cmd *exec.Cmd) error
}

func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// Invocation describes one external-tool run.
type Invocation struct {
	Tool string
	Args []string
	Dir  string
	Env  map[string]string // merged over the ambient environment
}

func (inv Invocation) String() string {
	return inv.Tool + " " + strings.Join(inv.Args, " ")
}

// Run executes the invocation, returning the combined captured output. On a
// non-zero exit the output is returned alongside the error so callers can
// attach diagnostics to their report.
func (e *Executor) Run(inv Invocation) (string, error) {
	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tool := inv.Tool
	args := inv.Args
	if e.ApplyIdlePriority {
		args = append([]string{"-n", "19", tool}, args...)
		tool = "nice"
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), inv.Env)

	var buf bytes.Buffer
	if e.Quiet {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	} else {
		cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
		cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
	}

	// Own process group so cancellation can reap the whole tool tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	debugf("exec: %s\n", inv)

	run := e.runner
	if run == nil {
		run = func(c *exec.Cmd) error { return c.Run() }
	}
	if err := run(cmd); err != nil {
		return buf.String(), fmt.Errorf("%s: %w", inv.Tool, err)
	}
	return buf.String(), nil
}

// mergeEnv overlays kv pairs onto a base environment, replacing existing keys.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, ok := overlay[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range overlay {
		out = append(out, k+"="+v)
	}
	return out
}

// outputTail trims captured diagnostics to the last n lines for error
// reporting; full output stays with the check report.
func outputTail(out string, n int) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
