package summary

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roach88/restage/internal/ir"
)

// PlotFile is the name of the optional scan plot.
const PlotFile = "scan.png"

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Plot draws the intensity of detector d against the first scan variable,
// with error bars, and saves it to path. Points are indexed when the first
// variable is not numeric.
func (s *Scan) Plot(path string, d int) error {
	if len(s.Rows) == 0 {
		return fmt.Errorf("plot: scan has no points")
	}
	names := s.DetectorNames()
	if d < 0 || d >= len(names) {
		return fmt.Errorf("plot: no detector %d (have %d)", d, len(names))
	}

	_, _, numeric := s.xlimits()
	pts := errorPoints{
		XYs:     make(plotter.XYs, 0, len(s.Rows)),
		YErrors: make(plotter.YErrors, 0, len(s.Rows)),
	}
	for i, r := range s.Rows {
		if d >= len(r.Detectors) {
			continue
		}
		x := float64(i)
		if numeric {
			x, _ = ir.Numeric(r.Values[0])
		}
		det := r.Detectors[d]
		pts.XYs = append(pts.XYs, plotter.XY{X: x, Y: det.Intensity})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{det.Error, det.Error})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", s.Instrument, s.title())
	if numeric {
		p.X.Label.Text = s.Names[0]
	} else {
		p.X.Label.Text = "Point"
	}
	p.Y.Label.Text = names[d] + " intensity"

	line, err := plotter.NewLine(pts.XYs)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	line.Width = vg.Points(1)
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	p.Add(line, bars)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	return nil
}
