package scan

import (
	"iter"

	"github.com/roach88/restage/internal/ir"
)

// Mode selects how axes combine.
type Mode int

const (
	// Zip advances all axes together.
	Zip Mode = iota
	// Grid enumerates the cartesian product, last axis fastest.
	Grid
)

func (m Mode) String() string {
	if m == Grid {
		return "grid"
	}
	return "zip"
}

// ModeOf returns Grid when grid is set.
func ModeOf(grid bool) Mode {
	if grid {
		return Grid
	}
	return Zip
}

// Plan is an expanded scan with random access to its points.
type Plan struct {
	names []string
	axes  map[string]Axis
	dims  [][]string
	lens  []int
	count int
	mode  Mode
}

// Expand validates axes and prepares the point sequence. An empty axis set
// yields a plan with Len 0.
func Expand(axes *Axes, mode Mode) (*Plan, error) {
	p := &Plan{
		names: axes.Names(),
		axes:  make(map[string]Axis, axes.Len()),
		mode:  mode,
	}
	for _, n := range p.names {
		p.axes[n], _ = axes.Get(n)
	}
	if len(p.names) == 0 {
		return p, nil
	}

	if mode == Zip {
		p.dims = [][]string{p.names}
	} else {
		p.dims = axes.dimensions()
	}

	p.count = 1
	for _, dim := range p.dims {
		n, err := p.dimensionLen(dim)
		if err != nil {
			return nil, err
		}
		p.lens = append(p.lens, n)
		p.count *= n
	}
	return p, nil
}

// dimensionLen applies the broadcast rule within one dimension.
func (p *Plan) dimensionLen(dim []string) (int, error) {
	longest, longestName := 0, ""
	for _, n := range dim {
		if l := p.axes[n].Len(); l > longest {
			longest, longestName = l, n
		}
	}
	for _, n := range dim {
		l := p.axes[n].Len()
		if l != 1 && l != longest {
			return 0, ir.Configuration("scan.expand",
				"%s axis %q has %d values but %q has %d", p.mode, n, l, longestName, longest)
		}
	}
	return longest, nil
}

// Len is the number of points.
func (p *Plan) Len() int {
	return p.count
}

// Names returns the scanned parameter names in declaration order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Mode reports how the plan combines its axes.
func (p *Plan) Mode() Mode {
	return p.mode
}

// At returns the i-th point. For a grid,
// index_k = (i / prod_{j>k} len_j) % len_k.
func (p *Plan) At(i int) ir.Point {
	indices := make(map[string]int, len(p.names))
	stride := 1
	for k := len(p.dims) - 1; k >= 0; k-- {
		idx := (i / stride) % p.lens[k]
		for _, n := range p.dims[k] {
			indices[n] = idx
		}
		stride *= p.lens[k]
	}

	pt := ir.NewPoint()
	for _, n := range p.names {
		axis := p.axes[n]
		if axis.Len() == 1 {
			pt.Set(n, axis.At(0))
			continue
		}
		pt.Set(n, axis.At(indices[n]))
	}
	return pt
}

// Points iterates the plan in order.
func (p *Plan) Points() iter.Seq2[int, ir.Point] {
	return func(yield func(int, ir.Point) bool) {
		for i := range p.count {
			if !yield(i, p.At(i)) {
				return
			}
		}
	}
}

// Column returns the value sequence of one name across the plan.
func (p *Plan) Column(name string) []ir.Value {
	if _, ok := p.axes[name]; !ok {
		return nil
	}
	out := make([]ir.Value, p.count)
	for i := range p.count {
		v, _ := p.At(i).Get(name)
		out[i] = v
	}
	return out
}
