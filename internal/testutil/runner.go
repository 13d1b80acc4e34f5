package testutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Invocation is one call observed by FakeRunner.
type Invocation struct {
	Binary string
	Args   []string
	Cwd    string
	OutDir string
	Count  int64 // --ncount, 0 when absent
	Seed   int64 // --seed, 0 when absent
	Params map[string]string
	// Input is true when the particle file parameter named an existing file.
	Input bool
}

// FakeRunner stands in for a compiled instrument. Every call creates the
// --dir output directory with a one-detector mccode.sim. When the particle
// file parameter names a missing file, the run "emits" a fake particle file
// holding Yield(inv) particles; when it names an existing file the run
// consumes it.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeRunner struct {
	// ParticleParameter defaults to "mcpl_filename".
	ParticleParameter string
	// Yield defaults to the requested count (or 1000 without one).
	Yield func(inv Invocation) int64
	// Fail, when set, is consulted first; a non-nil error is returned
	// without side effects.
	Fail func(inv Invocation) error

	mu          sync.Mutex
	invocations []Invocation
}

// Invocations returns a copy of the calls so far.
func (r *FakeRunner) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.invocations...)
}

// Requested returns the --ncount of every call so far.
func (r *FakeRunner) Requested() []int64 {
	var out []int64
	for _, inv := range r.Invocations() {
		out = append(out, inv.Count)
	}
	return out
}

// Run implements execute.Runner.
func (r *FakeRunner) Run(_ context.Context, binary string, args []string, cwd string) error {
	inv := Invocation{Binary: binary, Args: args, Cwd: cwd, Params: make(map[string]string)}
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--ncount="):
			inv.Count, _ = strconv.ParseInt(strings.TrimPrefix(a, "--ncount="), 10, 64)
		case strings.HasPrefix(a, "--seed="):
			inv.Seed, _ = strconv.ParseInt(strings.TrimPrefix(a, "--seed="), 10, 64)
		case strings.HasPrefix(a, "--dir="):
			inv.OutDir = strings.TrimPrefix(a, "--dir=")
			if !filepath.IsAbs(inv.OutDir) {
				inv.OutDir = filepath.Join(cwd, inv.OutDir)
			}
		case strings.HasPrefix(a, "--"):
		default:
			if k, v, ok := strings.Cut(a, "="); ok {
				inv.Params[k] = v
			}
		}
	}
	particleFile := inv.Params[r.particleParameter()]
	if particleFile != "" {
		if _, err := os.Stat(particleFile); err == nil {
			inv.Input = true
		}
	}

	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	if r.Fail != nil {
		if err := r.Fail(inv); err != nil {
			return err
		}
	}
	if inv.OutDir == "" {
		return errors.New("fake runner: no --dir")
	}
	if _, err := os.Stat(inv.OutDir); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fake runner: output directory %s already exists", inv.OutDir)
	}
	if err := os.MkdirAll(inv.OutDir, 0o755); err != nil {
		return err
	}

	var detected int64
	switch {
	case inv.Input:
		n, err := ReadParticleCount(particleFile)
		if err != nil {
			return err
		}
		detected = n
	case particleFile != "":
		detected = r.yield(inv)
		if err := WriteParticleFile(particleFile, detected); err != nil {
			return err
		}
	default:
		detected = r.yield(inv)
	}
	return writeSim(inv.OutDir, inv.Count, detected)
}

func (r *FakeRunner) particleParameter() string {
	if r.ParticleParameter == "" {
		return "mcpl_filename"
	}
	return r.ParticleParameter
}

func (r *FakeRunner) yield(inv Invocation) int64 {
	if r.Yield != nil {
		return r.Yield(inv)
	}
	if inv.Count > 0 {
		return inv.Count
	}
	return 1000
}

// writeSim writes a one-detector summary: I = n/1000, E = sqrt(n)/1000.
func writeSim(dir string, ncount, n int64) error {
	text := fmt.Sprintf(`begin simulation: %s
  Ncount: %d
end simulation

begin data
  component: mon
  filename: mon.dat
  Ncount: %d
  values: %g %g %d
end data
`, dir, ncount, ncount, float64(n)/1000, math.Sqrt(float64(n))/1000, n)
	return os.WriteFile(filepath.Join(dir, "mccode.sim"), []byte(text), 0o644)
}

// FakeParticles implements mcpl.Tool over fake particle files.
type FakeParticles struct {
	mu     sync.Mutex
	merges int
}

// Count implements mcpl.Tool.
func (p *FakeParticles) Count(_ context.Context, path string) (int64, error) {
	return ReadParticleCount(path)
}

// Merge implements mcpl.Tool.
func (p *FakeParticles) Merge(_ context.Context, out string, paths []string) (string, error) {
	p.mu.Lock()
	p.merges++
	p.mu.Unlock()
	if _, err := MergeParticleFiles(out, paths); err != nil {
		return "", err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return "", err
		}
	}
	return out, nil
}

// Merges returns how many merges ran.
func (p *FakeParticles) Merges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.merges
}

// Chopper is a deterministic stand-in for a chopper-timing calculator:
// every device speed is energy*order and every phase is 1000*time.
func Chopper(devices ...string) func(ctx context.Context, order int, time, energy float64) (map[string]float64, error) {
	return func(_ context.Context, order int, time, energy float64) (map[string]float64, error) {
		out := make(map[string]float64, 2*len(devices))
		for _, d := range devices {
			out[d+"speed"] = energy * float64(order)
			out[d+"phase"] = 1000 * time
		}
		return out, nil
	}
}
