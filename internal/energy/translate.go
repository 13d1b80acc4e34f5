package energy

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/scan"
)

// meVAngstrom2 converts wavelength to energy: E[meV] = 81.82 / λ[Å]².
const meVAngstrom2 = 81.82

// Input names in priority order. All of them are consumed.
var (
	energyNames     = []string{"ei", "energy", "e"}
	wavelengthNames = []string{"wavelength", "lambda"}
	timeNames       = []string{"time", "t"}
	orderNames      = []string{"order"}
)

// WavelengthToEnergy converts Å to meV.
func WavelengthToEnergy(wavelength float64) float64 {
	return meVAngstrom2 / wavelength / wavelength
}

// Translator dispatches to the first matching family.
type Translator struct {
	families []Family
	logger   *slog.Logger
}

// NewTranslator creates a translator over families, in order.
// A nil logger uses slog.Default().
func NewTranslator(logger *slog.Logger, families ...Family) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{families: families, logger: logger}
}

// Lookup returns the family handling instrument.
func (t *Translator) Lookup(instrument string) (Family, bool) {
	for _, f := range t.families {
		if f.Match != nil && f.Match(instrument) {
			return f, true
		}
	}
	return Family{}, false
}

// Consumes reports whether translating for instrument replaces name:
// energy, wavelength, time and order inputs, and the family's chopper
// parameters.
func (t *Translator) Consumes(instrument, name string) bool {
	fam, ok := t.Lookup(instrument)
	if !ok {
		return false
	}
	for _, names := range [][]string{energyNames, wavelengthNames, timeNames, orderNames, fam.ParameterNames()} {
		if slices.Contains(names, name) {
			return true
		}
	}
	return false
}

// Translate returns a copy of axes with the family's chopper parameters
// defaulted to zero and, when an energy or wavelength axis is present,
// replaced by calculated values. The calculated axes are linked so a grid
// treats them as one dimension.
func (t *Translator) Translate(ctx context.Context, instrument string, axes *scan.Axes, mode scan.Mode) (*scan.Axes, error) {
	out := axes.Clone()
	fam, ok := t.Lookup(instrument)
	if !ok {
		return out, nil
	}

	for _, name := range fam.ParameterNames() {
		if _, set := out.Get(name); !set {
			out.Set(name, scan.Singular{Value: ir.Float(0)})
		}
	}

	timeAxis := take(out, timeNames, scan.Singular{Value: ir.Float(fam.DefaultTime)})
	orderAxis := take(out, orderNames, scan.Singular{Value: ir.Int(int64(fam.DefaultOrder))})
	energyAxis, err := t.energyAxis(out)
	if err != nil {
		return nil, err
	}
	if energyAxis == nil {
		return out, nil
	}
	if fam.Calculator == nil {
		return nil, ir.Configuration("energy.translate",
			"instrument %q (%s family) has no chopper calculator configured", instrument, fam.Name)
	}

	inputs := scan.NewAxes()
	inputs.Set("order", orderAxis)
	inputs.Set("time", timeAxis)
	inputs.Set("ei", energyAxis)
	plan, err := scan.Expand(inputs, mode)
	if err != nil {
		return nil, err
	}

	columns := make(map[string][]ir.Value)
	var keys []string
	for i, pt := range plan.Points() {
		order, time, ei, err := tuple(pt)
		if err != nil {
			return nil, err
		}
		timings, err := fam.Calculator.Calculate(ctx, order, time, ei)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			for k := range timings {
				keys = append(keys, k)
			}
			slices.Sort(keys)
		} else if len(timings) != len(keys) {
			return nil, ir.Execution("energy.translate", nil,
				"calculator returned %d timings for point %d, expected %d", len(timings), i, len(keys))
		}
		for _, k := range keys {
			v, ok := timings[k]
			if !ok {
				return nil, ir.Execution("energy.translate", nil, "calculator omitted %q for point %d", k, i)
			}
			columns[k] = append(columns[k], ir.Float(v))
		}
	}

	for _, k := range keys {
		out.Set(k, scan.List{Values: columns[k]})
	}
	out.Link(keys...)

	t.logger.Debug("energy translated",
		"instrument", instrument,
		"family", fam.Name,
		"points", plan.Len(),
		"parameters", keys)
	return out, nil
}

// TranslatePoint translates a single point.
func (t *Translator) TranslatePoint(ctx context.Context, instrument string, p ir.Point) (ir.Point, error) {
	axes := scan.NewAxes()
	for _, pair := range p.Pairs() {
		axes.Set(pair.Name, scan.Singular{Value: pair.Value})
	}
	translated, err := t.Translate(ctx, instrument, axes, scan.Zip)
	if err != nil {
		return ir.Point{}, err
	}
	plan, err := scan.Expand(translated, scan.Zip)
	if err != nil {
		return ir.Point{}, err
	}
	if plan.Len() == 0 {
		return ir.NewPoint(), nil
	}
	return plan.At(0), nil
}

// energyAxis removes every energy and wavelength input and returns the
// energy axis in meV, or nil when none was supplied.
func (t *Translator) energyAxis(axes *scan.Axes) (scan.Axis, error) {
	if ei := take(axes, energyNames, nil); ei != nil {
		take(axes, wavelengthNames, nil)
		return ei, nil
	}
	wl := take(axes, wavelengthNames, nil)
	if wl == nil {
		return nil, nil
	}
	values := scan.Values(wl)
	energies := make([]ir.Value, len(values))
	for i, v := range values {
		lambda, ok := ir.Numeric(v)
		if !ok || lambda <= 0 || math.IsInf(lambda, 0) {
			return nil, ir.Configuration("energy.translate", "wavelength %s must be a positive number", v)
		}
		energies[i] = ir.Float(WavelengthToEnergy(lambda))
	}
	return scan.List{Values: energies}, nil
}

// take removes all of names from axes, returning the first one present.
func take(axes *scan.Axes, names []string, fallback scan.Axis) scan.Axis {
	var found scan.Axis
	for _, n := range names {
		if a, ok := axes.Get(n); ok {
			if found == nil {
				found = a
			}
			axes.Delete(n)
		}
	}
	if found == nil {
		return fallback
	}
	return found
}

func tuple(pt ir.Point) (order int, time, energy float64, err error) {
	get := func(name string) (float64, error) {
		v, _ := pt.Get(name)
		f, ok := ir.Numeric(v)
		if !ok {
			return 0, ir.Configuration("energy.translate", "%s must be numeric, got %q", name, v.String())
		}
		return f, nil
	}
	o, err := get("order")
	if err != nil {
		return 0, 0, 0, err
	}
	time, err = get("time")
	if err != nil {
		return 0, 0, 0, err
	}
	energy, err = get("ei")
	if err != nil {
		return 0, 0, 0, err
	}
	if energy <= 0 {
		return 0, 0, 0, ir.Configuration("energy.translate", "energy %g must be positive", energy)
	}
	return int(o), time, energy, nil
}
