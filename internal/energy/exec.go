package energy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/roach88/restage/internal/ir"
)

// ExecCalculator runs an external program for each tuple:
//
//	<command...> --order N --time T --energy E
//
// The program must print a JSON object of numeric timing parameters.
type ExecCalculator struct {
	Command []string
}

// Calculate runs the command and decodes its output.
func (c ExecCalculator) Calculate(ctx context.Context, order int, time, energy float64) (map[string]float64, error) {
	if len(c.Command) == 0 {
		return nil, ir.Configuration("energy.exec", "calculator command is empty")
	}
	args := append(c.Command[1:len(c.Command):len(c.Command)],
		"--order", strconv.Itoa(order),
		"--time", strconv.FormatFloat(time, 'g', -1, 64),
		"--energy", strconv.FormatFloat(energy, 'g', -1, 64),
	)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		pe := &ir.ProcessError{Command: c.Command[0], ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		return nil, pe
	}
	return ParseTimings(stdout.Bytes())
}

// ParseTimings decodes a flat JSON object of numbers.
func ParseTimings(data []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(data) {
		return nil, ir.Execution("energy.parse", nil, "calculator output is not JSON")
	}
	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return nil, ir.Execution("energy.parse", nil, "calculator output is not a JSON object")
	}
	out := make(map[string]float64)
	var bad error
	result.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			bad = ir.Execution("energy.parse", nil, "timing %q is not a number: %s", key.String(), value.Raw)
			return false
		}
		out[key.String()] = value.Float()
		return true
	})
	if bad != nil {
		return nil, bad
	}
	if len(out) == 0 {
		return nil, ir.Execution("energy.parse", nil, "calculator returned no timings")
	}
	return out, nil
}

func (c ExecCalculator) String() string {
	return fmt.Sprintf("exec(%s)", strings.Join(c.Command, " "))
}
