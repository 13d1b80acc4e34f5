package queryir

import (
	"fmt"
	"math"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a table or column name.
// Backends quote identifiers as well; this rejects anything that would need
// escaping.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate checks a query before it reaches a backend.
//
// Rules:
//  1. Table and column names are plain identifiers
//  2. Within windows are finite and non-negative
//  3. Equals carries a value
//
// Validate is a pure function with no side effects.
func Validate(q Query) []error {
	v := &validator{}
	v.validateQuery(q)
	return v.errs
}

// validator accumulates problems during traversal.
type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case nil:
		v.add("nil query")
	default:
		v.add("unsupported query type %T", q)
	}
}

func (v *validator) validateSelect(s Select) {
	if !ValidIdentifier(s.From) {
		v.add("invalid table name %q", s.From)
	}
	for _, c := range s.Columns {
		if !ValidIdentifier(c) {
			v.add("invalid column name %q", c)
		}
	}
	if s.Filter != nil {
		v.validatePredicate(s.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateField(pred.Field)
		if pred.Value == nil {
			v.add("equals on %q has no value", pred.Field)
		}
	case *Equals:
		v.validatePredicate(*pred)
	case Within:
		v.validateField(pred.Field)
		if math.IsNaN(pred.Center) || math.IsInf(pred.Center, 0) {
			v.add("window on %q has non-finite center", pred.Field)
		}
		if pred.Tolerance < 0 || math.IsNaN(pred.Tolerance) || math.IsInf(pred.Tolerance, 0) {
			v.add("window on %q has invalid tolerance %g", pred.Field, pred.Tolerance)
		}
	case *Within:
		v.validatePredicate(*pred)
	case And:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.add("unsupported predicate type %T", p)
	}
}

func (v *validator) validateField(f string) {
	if !ValidIdentifier(f) {
		v.add("invalid column name %q", f)
	}
}
