package ir

import "strings"

// Point is one concrete value assignment for the parameters of a single
// simulation. Names keep their insertion order.
//
// A Point is built with Set and treated as immutable afterwards; Clone
// before mutating a point that has been handed to another component.
type Point struct {
	names  []string
	values map[string]Value
}

// Pair is a name/value pair used to build points.
type Pair struct {
	Name  string
	Value Value
}

// P is a shorthand for Pair.
func P(name string, v Value) Pair {
	return Pair{Name: name, Value: v}
}

// NewPoint creates a point from pairs, in order.
func NewPoint(pairs ...Pair) Point {
	p := Point{values: make(map[string]Value, len(pairs))}
	for _, pair := range pairs {
		p.Set(pair.Name, pair.Value)
	}
	return p
}

// Set assigns a value, appending the name if it is new.
func (p *Point) Set(name string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

// Get returns the value for name.
func (p Point) Get(name string) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether name is assigned.
func (p Point) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Names returns the parameter names in order. The slice is a copy.
func (p Point) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Len returns the number of parameters.
func (p Point) Len() int {
	return len(p.names)
}

// Pairs returns the assignments in order.
func (p Point) Pairs() []Pair {
	out := make([]Pair, len(p.names))
	for i, n := range p.names {
		out[i] = Pair{Name: n, Value: p.values[n]}
	}
	return out
}

// Clone returns an independent copy.
func (p Point) Clone() Point {
	return NewPoint(p.Pairs()...)
}

// Project keeps only the names accepted by keep, preserving order.
func (p Point) Project(keep func(name string) bool) Point {
	out := Point{values: make(map[string]Value)}
	for _, n := range p.names {
		if keep(n) {
			out.Set(n, p.values[n])
		}
	}
	return out
}

// Over returns a copy of base with every assignment of p applied on top.
// Names new to base are appended in p's order.
func (p Point) Over(base Point) Point {
	out := base.Clone()
	for _, n := range p.names {
		out.Set(n, p.values[n])
	}
	return out
}

// Equal reports whether both points assign equal values to the same names.
// Order is not significant.
func (p Point) Equal(o Point) bool {
	if p.Len() != o.Len() {
		return false
	}
	for _, n := range p.names {
		ov, ok := o.values[n]
		if !ok || !Equal(p.values[n], ov) {
			return false
		}
	}
	return true
}

// String renders "a=1 b=x" in order.
func (p Point) String() string {
	parts := make([]string, len(p.names))
	for i, n := range p.names {
		parts[i] = n + "=" + p.values[n].String()
	}
	return strings.Join(parts, " ")
}
