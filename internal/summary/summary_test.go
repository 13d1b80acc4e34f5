package summary

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/testutil"
)

func goldenScan() *Scan {
	s := NewScan("bifrost", "bifrost.cue", []string{"ei", "mode"}, 2)
	s.Date = testutil.FixedTime
	s.Count = 1000000
	s.Params = []string{"ei=3:0.5:3.5", "mode=a"}
	s.SetRow(1, []ir.Value{ir.Float(3.5), ir.Str("a")}, []Detector{
		{Name: "mon", Intensity: 2, Error: 0.5},
		{Name: "psd", Intensity: 0.25, Error: 0.125},
	})
	s.SetRow(0, []ir.Value{ir.Float(3), ir.Str("a")}, []Detector{
		{Name: "mon", Intensity: 1.5, Error: 0.25},
		{Name: "psd", Intensity: 0.125, Error: 0.0625},
	})
	return s
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestParse(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "run.sim"))
	require.NoError(t, err)
	require.Len(t, f.Sections, 4)
	assert.Equal(t, "simulation", f.Sections[1].Kind)
	assert.Equal(t, "out/0", f.Sections[1].Arg)

	dets, err := f.Detectors()
	require.NoError(t, err)
	assert.Equal(t, []Detector{
		{Name: "mon", Filename: "mon.dat", Intensity: 1.5, Error: 0.3, Count: 400},
		{Name: "psd", Filename: "psd.dat", Intensity: 0.25, Error: 0.05, Count: 100},
	}, dets)
}

func TestParse_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"unterminated": "begin data\n  values: 1 2 3\n",
		"stray end":    "end data\n",
		"nested":       "begin data\nbegin data\n",
		"outside":      "values: 1 2 3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(text))
			assert.Error(t, err)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "run.sim"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	again, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestMergeDirectories(t *testing.T) {
	run, err := os.ReadFile(filepath.Join("testdata", "run.sim"))
	require.NoError(t, err)

	work := t.TempDir()
	var dirs []string
	for _, n := range []string{"0", "1", "2"} {
		dir := filepath.Join(work, n)
		require.NoError(t, os.Mkdir(dir, 0o755))
		dirs = append(dirs, dir)
		if n == "2" {
			continue // a run that left no summary
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, SimFile), run, 0o644))
	}

	merged, err := MergeDirectories(dirs, work, nil)
	require.NoError(t, err)

	onDisk, err := ParseFile(filepath.Join(work, SimFile))
	require.NoError(t, err)
	assert.Equal(t, merged, onDisk)

	dets, err := onDisk.Detectors()
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "mon", dets[0].Name)
	assert.InDelta(t, 3.0, dets[0].Intensity, 1e-12)
	assert.InDelta(t, 0.3*1.4142135623730951, dets[0].Error, 1e-12)
	assert.InDelta(t, 800.0, dets[0].Count, 1e-12)
	assert.InDelta(t, 0.5, dets[1].Intensity, 1e-12)

	ncount, _ := onDisk.Sections[1].Get("Ncount")
	assert.Equal(t, "20000", ncount)
	dataN, _ := onDisk.Sections[2].Get("Ncount")
	assert.Equal(t, "800", dataN)
	seed, _ := onDisk.Sections[1].Get("Seed")
	assert.Equal(t, "1234", seed, "layout comes from the first summary")
}

func TestMergeDirectories_NoSummaries(t *testing.T) {
	_, err := MergeDirectories([]string{t.TempDir()}, t.TempDir(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScan_Golden(t *testing.T) {
	s := goldenScan()
	g := newGoldie(t)

	var sim bytes.Buffer
	require.NoError(t, s.File().Write(&sim))
	g.Assert(t, "scan_sim", sim.Bytes())

	var dat bytes.Buffer
	require.NoError(t, s.WriteDat(&dat))
	g.Assert(t, "scan_dat", dat.Bytes())
}

func TestScan_WriteFilesAndPlot(t *testing.T) {
	s := goldenScan()
	dir := t.TempDir()
	require.NoError(t, s.WriteFiles(dir))
	assert.FileExists(t, filepath.Join(dir, SimFile))
	assert.FileExists(t, filepath.Join(dir, DatFile))

	png := filepath.Join(dir, PlotFile)
	require.NoError(t, s.Plot(png, 0))
	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, s.Plot(png, 5))
}

func TestScan_NonNumericFirstVariable(t *testing.T) {
	s := NewScan("cspec", "cspec.cue", []string{"mode"}, 1)
	s.SetRow(0, []ir.Value{ir.Str("high")}, nil)
	_, _, ok := s.xlimits()
	assert.False(t, ok)
	assert.Empty(t, s.DetectorNames())
}
