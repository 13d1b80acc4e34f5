package queryir

import "github.com/roach88/restage/internal/ir"

// Row is one stored row as seen by Match.
type Row func(column string) (ir.Value, bool)

// Match evaluates p against row. A missing column never matches.
func Match(p Predicate, row Row) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := row(pred.Field)
		return ok && ir.Equal(v, pred.Value)
	case *Equals:
		return Match(*pred, row)
	case Within:
		v, ok := row(pred.Field)
		if !ok {
			return false
		}
		f, ok := ir.Numeric(v)
		if !ok {
			return false
		}
		lo, hi := pred.Bounds()
		return f >= lo && f <= hi
	case *Within:
		return Match(*pred, row)
	case And:
		for _, child := range pred.Predicates {
			if !Match(child, row) {
				return false
			}
		}
		return true
	case *And:
		return Match(*pred, row)
	default:
		return false
	}
}
