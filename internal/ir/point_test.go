package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointKeepsOrder(t *testing.T) {
	p := NewPoint(P("z", Int(1)), P("a", Int(2)))
	p.Set("m", Str("x"))
	p.Set("z", Int(5))

	assert.Equal(t, []string{"z", "a", "m"}, p.Names())
	assert.Equal(t, "z=5 a=2 m=x", p.String())
}

func TestPointOverAndProject(t *testing.T) {
	defaults := NewPoint(P("a", Float(1)), P("b", Float(2)))
	scan := NewPoint(P("b", Float(3)), P("c", Float(4)))

	full := scan.Over(defaults)
	assert.Equal(t, "a=1 b=3 c=4", full.String())
	assert.Equal(t, "a=1 b=2", defaults.String(), "base is not modified")

	upstream := full.Project(func(n string) bool { return n != "c" })
	assert.Equal(t, "a=1 b=3", upstream.String())
}

func TestPointEqual(t *testing.T) {
	a := NewPoint(P("x", Int(2)), P("y", Str("s")))
	b := NewPoint(P("y", Str("s")), P("x", Float(2)))
	c := NewPoint(P("x", Int(2)))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, Int(12), ParseValue("12"))
	assert.Equal(t, Float(1.5), ParseValue(" 1.5 "))
	assert.Equal(t, Float(1e-3), ParseValue("1e-3"))
	assert.Equal(t, Str("abc"), ParseValue("abc"))
	assert.Equal(t, Str("NaN"), ParseValue("NaN"))
	assert.Equal(t, Str("x y"), ParseValue(`"x y"`))
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(2.5)
	require.NoError(t, err)
	assert.Equal(t, Float(2.5), v)

	v, err = FromAny(true)
	require.NoError(t, err)
	assert.Equal(t, Int(1), v)

	_, err = FromAny([]int{1})
	assert.Error(t, err)
}

func TestResultTableSameNames(t *testing.T) {
	tbl := ResultTable{ParameterNames: []string{"a", "b"}}
	assert.True(t, tbl.SameNames([]string{"b", "a"}))
	assert.False(t, tbl.SameNames([]string{"a"}))
	assert.False(t, tbl.SameNames([]string{"a", "c"}))
}

func TestErrorKinds(t *testing.T) {
	cfg := Configuration("scan.parse", "bad axis %q", "1:0:2")
	assert.True(t, IsConfiguration(cfg))
	assert.False(t, IsExecution(cfg))
	assert.Contains(t, cfg.Error(), "scan.parse")

	wrapped := Execution("run", &ProcessError{Command: "sim", ExitCode: 3}, "upstream failed")
	assert.True(t, IsExecution(wrapped))

	var pe *ProcessError
	require.ErrorAs(t, wrapped, &pe)
	assert.Equal(t, 3, pe.ExitCode)
}
