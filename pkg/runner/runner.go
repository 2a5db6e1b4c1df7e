// Package runner invokes external image tools (waifu2x, potrace, pngquant,
// texconv, ...) as input path -> output path commands.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrTimeout is returned when a tool runs longer than its configured timeout.
var ErrTimeout = errors.New("runner: timed out")

// Placeholders substituted in Args.
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
	OutDirPlaceholder = "{outdir}"
)

// Fallback decides what happens after an accepted non-zero exit code.
type Fallback int

const (
	// CopyInput copies the input file to the output path unchanged.
	CopyInput Fallback = iota
	// KeepOutput leaves whatever the tool wrote, failing if it wrote nothing.
	KeepOutput
)

// Result is the outcome of a single invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Fallback bool // output was produced by the fallback, not the tool
}

// ExitError reports a tool that exited with an unaccepted status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("runner: %s exited with status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("runner: %s exited with status %d: %s", e.Command, e.Code, msg)
}

// Runner describes one external command.
type Runner struct {
	Command     string
	Args        []string
	Dir         string
	Env         []string
	Timeout     time.Duration
	AcceptCodes []int
	Fallback    Fallback
	Logger      *slog.Logger
}

// New creates a runner for command with the given argument template
func New(command string, args ...string) *Runner {
	return &Runner{Command: command, Args: args}
}

// Expand substitutes the placeholders in the argument template.
func (r *Runner) Expand(input, output string) []string {
	rep := strings.NewReplacer(
		InputPlaceholder, input,
		OutputPlaceholder, output,
		OutDirPlaceholder, filepath.Dir(output),
	)
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = rep.Replace(a)
	}
	return args
}

// Run executes the tool for input and output. A zero exit is success; an
// exit code in AcceptCodes triggers the fallback; anything else is an
// *ExitError. When Timeout elapses the process is killed and ErrTimeout
// is returned.
func (r *Runner) Run(ctx context.Context, input, output string) (*Result, error) {
	if r.Command == "" {
		return nil, errors.New("runner: empty command")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.Expand(input, output)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	r.logger().DebugContext(ctx, "tool finished",
		"command", r.Command, "args", args, "duration", res.Duration)

	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("%w: %s after %s", ErrTimeout, r.Command, r.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("runner: failed to start %s: %w", r.Command, err)
		}
		res.ExitCode = exitErr.ExitCode()
		if !slices.Contains(r.AcceptCodes, res.ExitCode) {
			return res, &ExitError{Command: r.Command, Code: res.ExitCode, Stderr: res.Stderr}
		}
		r.logger().WarnContext(ctx, "tool declined, applying fallback",
			"command", r.Command, "code", res.ExitCode, "input", input)
		if err := r.fallback(input, output); err != nil {
			return res, err
		}
		res.Fallback = r.Fallback == CopyInput
	}
	return res, nil
}

func (r *Runner) fallback(input, output string) error {
	switch r.Fallback {
	case CopyInput:
		return CopyFile(input, output)
	default:
		if _, err := os.Stat(output); err != nil {
			return fmt.Errorf("runner: %s produced no output: %w", r.Command, err)
		}
		return nil
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
