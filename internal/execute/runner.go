package execute

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/restage/internal/ir"
)

// Runner executes binary with args, using dir as the working directory.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, dir string) error
}

// stderrTail bounds how much of a failed process' stderr is kept.
const stderrTail = 4096

// ExecRunner runs binaries as child processes.
type ExecRunner struct {
	// Timeout bounds each invocation; zero means none.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Run implements Runner. A non-zero exit or a timeout returns an
// *ir.ProcessError.
func (r ExecRunner) Run(ctx context.Context, binary string, args []string, dir string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.Debug("process finished",
		"binary", filepath.Base(binary),
		"dir", dir,
		"duration", time.Since(start),
		"error", err)
	if err == nil {
		return nil
	}

	pe := &ir.ProcessError{
		Command:  filepath.Base(binary) + " " + strings.Join(args, " "),
		ExitCode: cmd.ProcessState.ExitCode(),
		Stderr:   tail(strings.TrimSpace(stderr.String()), stderrTail),
		Err:      err,
	}
	if r.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		pe.Timeout = r.Timeout
	}
	return pe
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
