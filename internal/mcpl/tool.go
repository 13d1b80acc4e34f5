package mcpl

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/restage/internal/ir"
)

// Tool counts and merges particle files.
type Tool interface {
	// Count returns the number of particles stored in path.
	Count(ctx context.Context, path string) (int64, error)
	// Merge concatenates paths into out, preserving weights, and removes
	// the inputs. It returns the real name of the merged file.
	Merge(ctx context.Context, out string, paths []string) (string, error)
}

// DefaultCommand is the tool looked up on PATH when none is configured.
const DefaultCommand = "mcpltool"

var particlesLine = regexp.MustCompile(`No\. of particles\s*:\s*(\d+)`)

// ExecTool runs mcpltool.
type ExecTool struct {
	Command string
	Logger  *slog.Logger
}

func (t ExecTool) command() string {
	if t.Command == "" {
		return DefaultCommand
	}
	return t.Command
}

func (t ExecTool) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

// Count implements Tool using "mcpltool --justhead".
func (t ExecTool) Count(ctx context.Context, path string) (int64, error) {
	real, err := RealFilename(path)
	if err != nil {
		return 0, err
	}
	out, err := t.run(ctx, "--justhead", real)
	if err != nil {
		return 0, err
	}
	return ParseCount(out)
}

// Merge implements Tool using "mcpltool --merge".
func (t ExecTool) Merge(ctx context.Context, out string, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("merge into %s: no input files", out)
	}
	reals := make([]string, len(paths))
	for i, p := range paths {
		real, err := RealFilename(p)
		if err != nil {
			return "", err
		}
		reals[i] = real
	}
	args := append([]string{"--merge", out}, reals...)
	if _, err := t.run(ctx, args...); err != nil {
		return "", err
	}
	for _, r := range reals {
		if err := os.Remove(r); err != nil {
			t.logger().Warn("removing merged part", "file", r, "error", err)
		}
	}
	return RealFilename(out)
}

func (t ExecTool) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.command(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	t.logger().Debug("running particle tool", "command", t.command(), "args", args)
	if err := cmd.Run(); err != nil {
		return nil, &ir.ProcessError{
			Command:  t.command() + " " + strings.Join(args, " "),
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// ParseCount extracts the particle count from mcpltool header output.
func ParseCount(header []byte) (int64, error) {
	m := particlesLine.FindSubmatch(header)
	if m == nil {
		return 0, ir.Execution("mcpl.count", nil, "no particle count in mcpltool output %q", header)
	}
	return strconv.ParseInt(string(m[1]), 10, 64)
}
