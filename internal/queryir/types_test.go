package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
)

func column(name string) string { return "p_" + name }

func TestLookup_BuildsWindowsAndEqualities(t *testing.T) {
	seed := int64(42)
	q := ir.NewQuery(
		ir.NewPoint(ir.P("speed", ir.Float(140)), ir.P("mode", ir.Str("fast"))),
		map[string]float64{"speed": 0.5}, &seed, 1000, true)

	got := Lookup(q, column)

	assert.Equal(t, And{Predicates: []Predicate{
		Within{Field: "p_speed", Center: 140, Tolerance: 0.5},
		Equals{Field: "p_mode", Value: ir.Str("fast")},
		Equals{Field: ColumnSeed, Value: ir.Int(42)},
		Equals{Field: ColumnCount, Value: ir.Int(1000)},
		Equals{Field: ColumnGravitation, Value: ir.Int(1)},
	}}, got)
}

func TestLookup_UnsetSeedAndCountAreNotFiltered(t *testing.T) {
	q := ir.NewQuery(ir.NewPoint(ir.P("x", ir.Int(3))), nil, nil, 0, false)

	got := Lookup(q, column)

	require.Len(t, got.Predicates, 2)
	assert.Equal(t, Equals{Field: ColumnGravitation, Value: ir.Int(0)}, got.Predicates[1])
}

func TestMatch(t *testing.T) {
	row := func(col string) (ir.Value, bool) {
		switch col {
		case "p_speed":
			return ir.Float(140.01), true
		case "p_mode":
			return ir.Str("fast"), true
		case ColumnGravitation:
			return ir.Int(0), true
		}
		return nil, false
	}

	assert.True(t, Match(Within{Field: "p_speed", Center: 140, Tolerance: 0.014}, row))
	assert.False(t, Match(Within{Field: "p_speed", Center: 140, Tolerance: 0.001}, row))
	assert.True(t, Match(Equals{Field: "p_mode", Value: ir.Str("fast")}, row))
	assert.False(t, Match(Equals{Field: "p_mode", Value: ir.Str("slow")}, row))
	assert.False(t, Match(Equals{Field: "p_other", Value: ir.Int(1)}, row), "missing column never matches")
	assert.False(t, Match(Within{Field: "p_mode", Center: 0, Tolerance: 1}, row), "strings never fall in a window")
	assert.True(t, Match(And{}, row), "empty conjunction is true")
	assert.True(t, Match(nil, row))
	assert.False(t, Match(&And{Predicates: []Predicate{
		Equals{Field: ColumnGravitation, Value: ir.Int(0)},
		Equals{Field: "p_mode", Value: ir.Str("slow")},
	}}, row))
}

func TestValidate(t *testing.T) {
	ok := Select{
		From:   "records_1",
		Filter: And{Predicates: []Predicate{Within{Field: "p_a", Center: 1, Tolerance: 0}}},
	}
	assert.Empty(t, Validate(ok))
	assert.Empty(t, Validate(&ok))

	bad := Select{
		From:    "records; DROP TABLE x",
		Columns: []string{"a b"},
		Filter: And{Predicates: []Predicate{
			Within{Field: "p_a", Center: 1, Tolerance: -1},
			Equals{Field: "p_b"},
		}},
	}
	assert.Len(t, Validate(bad), 4)
	assert.Len(t, Validate(nil), 1)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("p_ps1speed"))
	assert.True(t, ValidIdentifier("_x9"))
	assert.False(t, ValidIdentifier("9x"))
	assert.False(t, ValidIdentifier(`a"b`))
	assert.False(t, ValidIdentifier(""))
}

func TestMatch_WindowEdgesAreInclusive(t *testing.T) {
	window := Within{Field: "p_speed", Center: 100, Tolerance: 0.01}
	tests := []struct {
		stored float64
		want   bool
	}{
		{100.01, true},
		{99.99, true},
		{99.995, true},
		{100.02, false},
		{99.98, false},
	}
	for _, tt := range tests {
		row := func(col string) (ir.Value, bool) {
			if col == "p_speed" {
				return ir.Float(tt.stored), true
			}
			return nil, false
		}
		assert.Equal(t, tt.want, Match(window, row), "stored %g", tt.stored)
	}
}
