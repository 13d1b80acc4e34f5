package summary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/restage/internal/ir"
)

// DatFile is the name of the combined scan table.
const DatFile = "mccode.dat"

// dateLayout matches the McCode "%a %b %d %H %M %Y" header dates.
const dateLayout = "Mon Jan 02 15 04 2006"

// Row is one scan point: its scan values and its detector results.
type Row struct {
	Values    []ir.Value
	Detectors []Detector
}

// Scan accumulates the combined summary of a multi-point scan.
//
// Rows are addressed by point index so that points finishing out of order
// still produce an ordered table. Distinct indices may be set concurrently.
type Scan struct {
	Instrument string
	Source     string // path of the instrument description
	Date       time.Time
	Count      int64
	Params     []string // requested assignments, e.g. "ei=3:0.5:5"
	Names      []string // scan variable names, one per row value
	Rows       []Row
}

// NewScan creates a summary with n empty rows.
func NewScan(instrument, source string, names []string, n int) *Scan {
	return &Scan{
		Instrument: instrument,
		Source:     source,
		Names:      names,
		Rows:       make([]Row, n),
	}
}

// SetRow records point i.
func (s *Scan) SetRow(i int, values []ir.Value, detectors []Detector) {
	s.Rows[i] = Row{Values: values, Detectors: detectors}
}

// DetectorNames returns the detector names of the first row that has any.
func (s *Scan) DetectorNames() []string {
	for _, r := range s.Rows {
		if len(r.Detectors) == 0 {
			continue
		}
		out := make([]string, len(r.Detectors))
		for i, d := range r.Detectors {
			out[i] = d.Name
		}
		return out
	}
	return nil
}

func (s *Scan) yvars() string {
	var parts []string
	for _, d := range s.DetectorNames() {
		parts = append(parts, fmt.Sprintf("(%s_I,%s_ERR)", d, d))
	}
	return strings.Join(parts, " ")
}

func (s *Scan) variables() string {
	vars := append([]string(nil), s.Names...)
	for _, d := range s.DetectorNames() {
		vars = append(vars, d+"_I", d+"_ERR")
	}
	return strings.Join(vars, " ")
}

// xlimits returns the range of the first scan variable when it is numeric.
func (s *Scan) xlimits() (lo, hi float64, ok bool) {
	if len(s.Names) == 0 || len(s.Rows) == 0 {
		return 0, 0, false
	}
	xs := make([]float64, 0, len(s.Rows))
	for _, r := range s.Rows {
		if len(r.Values) == 0 {
			return 0, 0, false
		}
		x, numeric := ir.Numeric(r.Values[0])
		if !numeric {
			return 0, 0, false
		}
		xs = append(xs, x)
	}
	return floats.Min(xs), floats.Max(xs), true
}

func (s *Scan) title() string {
	return "Scan of " + strings.Join(s.Names, ", ")
}

// File renders the combined mccode.sim header.
func (s *Scan) File() *File {
	instrument := Section{Kind: "instrument", Fields: []Field{
		{"Creator", "restage " + ir.Version},
		{"Source", s.Source},
		{"Trace_enabled", "no"},
		{"Default_main", "yes"},
		{"Embedded_runtime", "yes"},
	}}
	simulation := Section{Kind: "simulation", Fields: []Field{
		{"Date", s.Date.Format(dateLayout)},
		{"Ncount", fmt.Sprint(s.Count)},
		{"Numpoints", fmt.Sprint(len(s.Rows))},
		{"Param", strings.Join(s.Params, ", ")},
	}}
	data := Section{Kind: "data", Fields: []Field{
		{"type", fmt.Sprintf("multiarray_1d(%d)", len(s.Rows))},
		{"title", s.title()},
		{"xvars", strings.Join(s.Names, ", ")},
		{"yvars", s.yvars()},
		{"xlabel", fmt.Sprintf("'%s'", strings.Join(s.Names, ", "))},
		{"ylabel", "'Intensity'"},
	}}
	if lo, hi, ok := s.xlimits(); ok {
		data.Fields = append(data.Fields, Field{"xlimits", formatNumber(lo) + " " + formatNumber(hi)})
	}
	data.Fields = append(data.Fields,
		Field{"filename", DatFile},
		Field{"variables", s.variables()},
	)
	return &File{Sections: []Section{instrument, simulation, data}}
}

// WriteDat renders the mccode.dat table: a commented header followed by
// one row per point of scan values then "I E" per detector.
func (s *Scan) WriteDat(w io.Writer) error {
	bw := bufio.NewWriter(w)
	header := []Field{
		{"Instrument-source", fmt.Sprintf("'%s'", s.Source)},
		{"Date", s.Date.Format(dateLayout)},
		{"Ncount", fmt.Sprint(s.Count)},
		{"Numpoints", fmt.Sprint(len(s.Rows))},
		{"Param", strings.Join(s.Params, ", ")},
		{"type", fmt.Sprintf("multiarray_1d(%d)", len(s.Rows))},
		{"title", s.title()},
		{"xlabel", fmt.Sprintf("'%s'", strings.Join(s.Names, ", "))},
		{"ylabel", "'Intensity'"},
		{"xvars", strings.Join(s.Names, ", ")},
		{"yvars", s.yvars()},
		{"filename", DatFile},
		{"variables", s.variables()},
	}
	for _, f := range header {
		fmt.Fprintf(bw, "# %s: %s\n", f.Key, f.Value)
	}
	for _, r := range s.Rows {
		parts := make([]string, 0, len(r.Values)+2*len(r.Detectors))
		for _, v := range r.Values {
			parts = append(parts, v.String())
		}
		for _, d := range r.Detectors {
			parts = append(parts, formatNumber(d.Intensity), formatNumber(d.Error))
		}
		fmt.Fprintln(bw, strings.Join(parts, " "))
	}
	return bw.Flush()
}

// WriteFiles writes mccode.sim and mccode.dat into dir.
func (s *Scan) WriteFiles(dir string) error {
	if err := s.File().WriteFile(filepath.Join(dir, SimFile)); err != nil {
		return fmt.Errorf("write scan summary: %w", err)
	}
	fh, err := os.Create(filepath.Join(dir, DatFile))
	if err != nil {
		return fmt.Errorf("write scan table: %w", err)
	}
	if err := s.WriteDat(fh); err != nil {
		fh.Close()
		return fmt.Errorf("write scan table: %w", err)
	}
	return fh.Close()
}
