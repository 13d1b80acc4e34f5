package energy

import (
	"context"
	"strings"
)

// Calculator computes named chopper timing parameters for one
// (order, time, energy) tuple. Energies are in meV, time in seconds.
type Calculator interface {
	Calculate(ctx context.Context, order int, time, energy float64) (map[string]float64, error)
}

// CalculatorFunc adapts a function to Calculator.
type CalculatorFunc func(ctx context.Context, order int, time, energy float64) (map[string]float64, error)

// Calculate calls f.
func (f CalculatorFunc) Calculate(ctx context.Context, order int, time, energy float64) (map[string]float64, error) {
	return f(ctx, order, time, energy)
}

// Family describes one instrument family's chopper layout.
type Family struct {
	Name         string
	Match        func(instrument string) bool
	Devices      []string
	DefaultTime  float64
	DefaultOrder int
	Calculator   Calculator // nil: chopper names are defaulted, energy axes rejected
}

// ParameterNames lists "<device>speed" and "<device>phase" for every device.
func (f Family) ParameterNames() []string {
	names := make([]string, 0, 2*len(f.Devices))
	for _, d := range f.Devices {
		names = append(names, d+"speed", d+"phase")
	}
	return names
}

// NameContains matches instrument names containing s, case-insensitively.
func NameContains(s string) func(string) bool {
	s = strings.ToLower(s)
	return func(instrument string) bool {
		return strings.Contains(strings.ToLower(instrument), s)
	}
}

// Bifrost is the six-device BIFROST primary spectrometer layout.
func Bifrost(calc Calculator) Family {
	return Family{
		Name:         "bifrost",
		Match:        NameContains("bifrost"),
		Devices:      []string{"ps1", "ps2", "fo1", "fo2", "bw1", "bw2"},
		DefaultTime:  0.004,
		DefaultOrder: 1,
		Calculator:   calc,
	}
}

// CSPEC is the seven-device CSPEC primary spectrometer layout.
func CSPEC(calc Calculator) Family {
	return Family{
		Name:         "cspec",
		Match:        NameContains("cspec"),
		Devices:      []string{"bw1", "bw2", "bw3", "s", "p", "m1", "m2"},
		DefaultTime:  0.004,
		DefaultOrder: 16,
		Calculator:   calc,
	}
}

// Builtin returns the known families in dispatch order. calculators maps
// family name to calculator; missing entries leave the family without one.
func Builtin(calculators map[string]Calculator) []Family {
	return []Family{
		Bifrost(calculators["bifrost"]),
		CSPEC(calculators["cspec"]),
	}
}
