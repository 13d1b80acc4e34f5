package instr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
)

const particleParam = "mcpl_filename"

func loadBifrost(t *testing.T) *Instrument {
	t.Helper()
	in, err := Load(filepath.Join("testdata", "bifrost.cue"))
	require.NoError(t, err)
	return in
}

func TestLoad(t *testing.T) {
	in := loadBifrost(t)

	assert.Equal(t, "bifrost", in.Name())
	assert.Equal(t, []string{
		"ps1speed", "ps1phase", "bw1speed", "bw1phase",
		"sample_angle", "mode", "nslits", "analyzer_angle",
	}, in.ParameterNames())
	assert.True(t, in.HasComponent("mcpl_split"))
	assert.False(t, in.HasComponent("guide"))

	mode, ok := in.Parameter("mode")
	require.True(t, ok)
	assert.Equal(t, TypeString, mode.Type)
	assert.Equal(t, ir.Str("inelastic"), mode.Default)

	nslits, _ := in.Parameter("nslits")
	assert.Equal(t, TypeInt, nslits.Type)
	assert.Equal(t, ir.Int(3), nslits.Default)

	angle, _ := in.Parameter("analyzer_angle")
	assert.Equal(t, TypeDouble, angle.Type)
	assert.Nil(t, angle.Default)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{
			name:    "missing instrument",
			text:    `other: 1`,
			wantMsg: "instrument is required",
		},
		{
			name:    "missing name",
			text:    `instrument: {components: [{name: "a"}]}`,
			wantMsg: "name is required",
		},
		{
			name:    "no components",
			text:    `instrument: {name: "x"}`,
			wantMsg: "at least one component",
		},
		{
			name:    "unknown type",
			text:    `instrument: {name: "x", parameters: {a: {type: "vector"}}, components: [{name: "c"}]}`,
			wantMsg: "unknown type",
		},
		{
			name:    "unknown parameter reference",
			text:    `instrument: {name: "x", components: [{name: "c", uses: ["nope"]}]}`,
			wantMsg: "unknown parameter",
		},
		{
			name:    "duplicate component",
			text:    `instrument: {name: "x", components: [{name: "c"}, {name: "c"}]}`,
			wantMsg: "declared twice",
		},
		{
			name:    "cue syntax",
			text:    `instrument: {name: }`,
			wantMsg: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text), "test.cue")
			require.Error(t, err)
			assert.True(t, ir.IsConfiguration(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSource_IgnoresLayout(t *testing.T) {
	a, err := Parse([]byte(`instrument: {name: "x", parameters: {a: 1.5}, components: [{name: "c", uses: ["a"]}]}`), "a.cue")
	require.NoError(t, err)
	b, err := Parse([]byte("instrument: {\n\tcomponents: [{uses: [\"a\"], name: \"c\"}]\n\tname: \"x\"\n\tparameters: a: 1.5\n}\n"), "b.cue")
	require.NoError(t, err)

	assert.Equal(t, a.Source(), b.Source())
	assert.Equal(t, ir.Fingerprint(a.Source()), ir.Fingerprint(b.Source()))

	c, err := Parse([]byte(`instrument: {name: "x", parameters: {a: 2.5}, components: [{name: "c", uses: ["a"]}]}`), "c.cue")
	require.NoError(t, err)
	assert.NotEqual(t, a.Source(), c.Source())
}

func TestSplit(t *testing.T) {
	in := loadBifrost(t)

	up, down, err := in.Split("mcpl_split", particleParam)
	require.NoError(t, err)

	assert.Equal(t, "bifrost_upstream", up.Name())
	assert.Equal(t, []string{"ps1speed", "ps1phase", "bw1speed", "bw1phase", particleParam}, up.ParameterNames())
	upComps := up.Components()
	assert.Equal(t, "mcpl_split", upComps[len(upComps)-2].Name)
	assert.Equal(t, TypeMCPLOutput, upComps[len(upComps)-1].Type)

	assert.Equal(t, "bifrost_downstream", down.Name())
	assert.Equal(t, []string{"sample_angle", "mode", "nslits", "analyzer_angle", particleParam}, down.ParameterNames())
	downComps := down.Components()
	assert.Equal(t, TypeMCPLInput, downComps[0].Type)
	assert.Equal(t, "sample", downComps[1].Name)
	assert.False(t, down.HasComponent("source"))

	assert.NotEqual(t, up.Source(), down.Source())
}

func TestSplit_UnknownBoundary(t *testing.T) {
	in := loadBifrost(t)
	_, _, err := in.Split("guide_end", particleParam)
	require.Error(t, err)
	assert.True(t, ir.IsConfiguration(err))
}

func TestSplit_ParticleParameterClash(t *testing.T) {
	in, err := Parse([]byte(`instrument: {name: "x", parameters: {mcpl_filename: "a"}, components: [{name: "s"}]}`), "x.cue")
	require.NoError(t, err)
	_, _, err = in.Split("s", particleParam)
	require.Error(t, err)
	assert.True(t, ir.IsConfiguration(err))
}

func TestComplete(t *testing.T) {
	in := loadBifrost(t)
	_, down, err := in.Split("mcpl_split", particleParam)
	require.NoError(t, err)

	p := ir.NewPoint(
		ir.P("analyzer_angle", ir.Float(40)),
		ir.P(particleParam, ir.Str("/tmp/a.mcpl")),
		ir.P("ps1speed", ir.Float(14)), // upstream only, ignored
	)
	full, err := down.Complete(p)
	require.NoError(t, err)
	assert.Equal(t, "sample_angle=0 mode=inelastic nslits=3 analyzer_angle=40 mcpl_filename=/tmp/a.mcpl", full.String())

	_, err = down.Complete(ir.NewPoint(ir.P(particleParam, ir.Str("x"))))
	require.Error(t, err)
	assert.True(t, ir.IsConfiguration(err))
	assert.Contains(t, err.Error(), "analyzer_angle")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, ir.IsConfiguration(err))
}

func TestComplete_Skip(t *testing.T) {
	in := loadBifrost(t)
	up, _, err := in.Split("mcpl_split", particleParam)
	require.NoError(t, err)

	full, err := up.Complete(ir.NewPoint(ir.P("ps1speed", ir.Float(14))), particleParam)
	require.NoError(t, err)
	assert.Equal(t, []string{"ps1speed", "ps1phase", "bw1speed", "bw1phase"}, full.Names())
}
