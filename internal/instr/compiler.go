package instr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/restage/internal/cache"
	"github.com/roach88/restage/internal/ir"
)

// Runner executes an external command in dir. execute.ExecRunner
// implements it.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, dir string) error
}

// ExecCompiler builds instrument binaries with an external compiler
// command. The command is invoked as
//
//	<Command...> <outDir>/<name>.instr.json -o <outDir>/<name>.out
//
// in outDir, and must leave the binary at the -o path.
type ExecCompiler struct {
	Command []string
	// ToolchainVersion overrides the version reported by
	// "<Command[0]> --version".
	ToolchainVersion string
	Runner           Runner

	once    sync.Once
	version string
	verErr  error
}

// Compile implements cache.Compiler.
func (c *ExecCompiler) Compile(ctx context.Context, inst cache.Instrument, outDir string) (cache.Compiled, error) {
	if len(c.Command) == 0 {
		return cache.Compiled{}, ir.Configuration("instr.compile", "no compiler command configured")
	}
	version, err := c.toolchainVersion(ctx)
	if err != nil {
		return cache.Compiled{}, err
	}

	src := filepath.Join(outDir, inst.Name()+".instr.json")
	if err := os.WriteFile(src, []byte(inst.Source()), 0o644); err != nil {
		return cache.Compiled{}, fmt.Errorf("write instrument source: %w", err)
	}
	bin := filepath.Join(outDir, inst.Name()+".out")
	args := append(c.Command[1:len(c.Command):len(c.Command)], src, "-o", bin)
	if err := c.Runner.Run(ctx, c.Command[0], args, outDir); err != nil {
		return cache.Compiled{}, err
	}

	info, err := os.Stat(bin)
	if err != nil || info.IsDir() {
		return cache.Compiled{}, ir.Execution("instr.compile", err,
			"%s produced no binary at %s", c.Command[0], bin)
	}
	return cache.Compiled{BinaryPath: bin, ToolchainVersion: version}, nil
}

func (c *ExecCompiler) toolchainVersion(ctx context.Context) (string, error) {
	if c.ToolchainVersion != "" {
		return c.ToolchainVersion, nil
	}
	c.once.Do(func() {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, c.Command[0], "--version")
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			c.verErr = &ir.ProcessError{
				Command:  c.Command[0] + " --version",
				ExitCode: cmd.ProcessState.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
				Err:      err,
			}
			return
		}
		line, _, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
		c.version = strings.TrimSpace(line)
	})
	return c.version, c.verErr
}
