package scan

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/restage/internal/ir"
)

// Axis is one named sequence of parameter values.
type Axis interface {
	Len() int
	At(i int) ir.Value
	String() string
}

// rangeEpsilon absorbs float error in (stop-start)/step so 0.1:0.1:0.3 has
// three elements.
const rangeEpsilon = 1e-9

// Range is an inclusive arithmetic sequence start, start+step, ... <= stop.
// Integer ranges yield ir.Int values.
type Range struct {
	Start, Stop, Step float64
	Integer           bool
}

// NewRange validates and builds a range.
func NewRange(start, stop, step float64) (Range, error) {
	if step == 0 {
		return Range{}, ir.Configuration("scan.range", "zero step in %g:%g:%g", start, step, stop)
	}
	if (stop-start)/step < 0 {
		return Range{}, ir.Configuration("scan.range", "step %g never reaches %g from %g", step, stop, start)
	}
	return Range{Start: start, Stop: stop, Step: step}, nil
}

// Len is floor((stop-start)/step)+1.
func (r Range) Len() int {
	return int(math.Floor((r.Stop-r.Start)/r.Step+rangeEpsilon)) + 1
}

// At computes index*step+start, never by accumulation.
func (r Range) At(i int) ir.Value {
	v := float64(i)*r.Step + r.Start
	if r.Integer {
		return ir.Int(int64(math.Round(v)))
	}
	return ir.Float(v)
}

func (r Range) String() string {
	return fmt.Sprintf("%g:%g:%g", r.Start, r.Step, r.Stop)
}

// Singular is a single value that broadcasts against longer axes.
type Singular struct {
	Value ir.Value
}

// Len is always 1.
func (s Singular) Len() int { return 1 }

// At returns the value for every index.
func (s Singular) At(int) ir.Value { return s.Value }

func (s Singular) String() string { return s.Value.String() }

// List is an explicit sequence of values.
type List struct {
	Values []ir.Value
}

// Len returns the number of values.
func (l List) Len() int { return len(l.Values) }

// At returns the i-th value.
func (l List) At(i int) ir.Value { return l.Values[i] }

func (l List) String() string {
	parts := make([]string, len(l.Values))
	for i, v := range l.Values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Values materialises every element of a.
func Values(a Axis) []ir.Value {
	out := make([]ir.Value, a.Len())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}

// Axes is an ordered name -> axis collection.
type Axes struct {
	names []string
	axes  map[string]Axis
	link  map[string]int // name -> link group id; unlinked names are absent
	group int
}

// NewAxes returns an empty collection.
func NewAxes() *Axes {
	return &Axes{axes: make(map[string]Axis), link: make(map[string]int)}
}

// Set adds or replaces the axis for name. A new name is appended.
func (a *Axes) Set(name string, axis Axis) {
	if _, ok := a.axes[name]; !ok {
		a.names = append(a.names, name)
	}
	a.axes[name] = axis
}

// Get returns the axis for name.
func (a *Axes) Get(name string) (Axis, bool) {
	axis, ok := a.axes[name]
	return axis, ok
}

// Delete removes name and its link membership.
func (a *Axes) Delete(name string) {
	if _, ok := a.axes[name]; !ok {
		return
	}
	delete(a.axes, name)
	delete(a.link, name)
	for i, n := range a.names {
		if n == name {
			a.names = append(a.names[:i], a.names[i+1:]...)
			break
		}
	}
}

// Names returns the axis names in declaration order.
func (a *Axes) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Len returns the number of axes.
func (a *Axes) Len() int {
	return len(a.names)
}

// Link ties names together so they advance as one grid dimension.
// Linking names already in different groups merges the groups.
func (a *Axes) Link(names ...string) {
	if len(names) < 2 {
		return
	}
	a.group++
	id := a.group
	merge := make(map[int]bool)
	for _, n := range names {
		if old, ok := a.link[n]; ok {
			merge[old] = true
		}
		a.link[n] = id
	}
	for n, g := range a.link {
		if merge[g] {
			a.link[n] = id
		}
	}
}

// Linked reports whether two names share a link group.
func (a *Axes) Linked(x, y string) bool {
	gx, okx := a.link[x]
	gy, oky := a.link[y]
	return okx && oky && gx == gy
}

// Subset returns the axes whose names satisfy keep, preserving order and
// links among the kept names.
func (a *Axes) Subset(keep func(name string) bool) *Axes {
	out := NewAxes()
	for _, n := range a.names {
		if keep(n) {
			out.Set(n, a.axes[n])
			if g, ok := a.link[n]; ok {
				out.link[n] = g
			}
		}
	}
	out.group = a.group
	return out
}

// Clone returns an independent copy.
func (a *Axes) Clone() *Axes {
	return a.Subset(func(string) bool { return true })
}

// dimensions groups names into independent grid dimensions, ordered by the
// first declared member of each.
func (a *Axes) dimensions() [][]string {
	var dims [][]string
	index := make(map[int]int)
	for _, n := range a.names {
		g, ok := a.link[n]
		if !ok {
			dims = append(dims, []string{n})
			continue
		}
		if i, seen := index[g]; seen {
			dims[i] = append(dims[i], n)
			continue
		}
		index[g] = len(dims)
		dims = append(dims, []string{n})
	}
	return dims
}
