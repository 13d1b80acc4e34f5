package queryir

import "github.com/roach88/restage/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows from one table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY id
//
// Columns empty means every column. Rows always come back ordered by id so
// that equal-scoring candidates are seen in a stable order.
type Select struct {
	From    string    // table name
	Filter  Predicate // nil = no filter
	Columns []string
}

func (Select) queryNode() {}

// Equals is an exact-match predicate.
//
//	<field> = <value>
//
// Numeric values compare by magnitude (ir.Equal), strings exactly.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Within is a symmetric tolerance window.
//
//	<field> BETWEEN center-tolerance AND center+tolerance
//
// Both ends are inclusive. A zero tolerance degenerates to equality.
type Within struct {
	Field     string
	Center    float64
	Tolerance float64
}

func (Within) predicateNode() {}

// Bounds returns the inclusive window.
func (w Within) Bounds() (lo, hi float64) {
	return w.Center - w.Tolerance, w.Center + w.Tolerance
}

// And is a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Lookup builds the fuzzy-match predicate for q:
//   - Within for every numeric parameter, using q's windows
//   - Equals for every categorical parameter
//   - Equals on seed and count when they are set
//   - Equals on gravitation, always
//
// columnFor maps a parameter name to its storage column.
func Lookup(q ir.Record, columnFor func(name string) string) And {
	var preds []Predicate
	for _, pair := range q.Point.Pairs() {
		col := columnFor(pair.Name)
		if v, ok := ir.Numeric(pair.Value); ok {
			preds = append(preds, Within{Field: col, Center: v, Tolerance: q.ToleranceFor(pair.Name)})
			continue
		}
		preds = append(preds, Equals{Field: col, Value: pair.Value})
	}
	if q.Seed != nil {
		preds = append(preds, Equals{Field: ColumnSeed, Value: ir.Int(*q.Seed)})
	}
	if q.Count > 0 {
		preds = append(preds, Equals{Field: ColumnCount, Value: ir.Int(q.Count)})
	}
	grav := ir.Int(0)
	if q.Gravitation {
		grav = ir.Int(1)
	}
	preds = append(preds, Equals{Field: ColumnGravitation, Value: grav})
	return And{Predicates: preds}
}

// Fixed record columns shared by every backend.
const (
	ColumnID          = "id"
	ColumnSeed        = "seed"
	ColumnCount       = "count"
	ColumnGravitation = "gravitation"
	ColumnOutput      = "output"
)
