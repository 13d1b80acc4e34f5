package instr

import (
	"fmt"
	"slices"

	"github.com/roach88/restage/internal/ir"
)

// ParamType is the declared type of an instrument parameter.
type ParamType string

const (
	TypeDouble ParamType = "double"
	TypeInt    ParamType = "int"
	TypeString ParamType = "string"
)

// Parameter is one declared instrument parameter. Default is nil when the
// parameter must be supplied by the caller.
type Parameter struct {
	Name    string
	Type    ParamType
	Default ir.Value
}

// Component is one step of the beam path.
type Component struct {
	Name string
	Type string
	Uses []string // parameters the component reads
}

// Component types inserted at a split boundary.
const (
	TypeMCPLOutput = "MCPL_output"
	TypeMCPLInput  = "MCPL_input"
)

// Instrument is an immutable instrument model.
type Instrument struct {
	name       string
	parameters []Parameter
	components []Component
}

// New validates and builds an instrument. Every name a component uses must
// be a declared parameter; component names must be unique.
func New(name string, parameters []Parameter, components []Component) (*Instrument, error) {
	if name == "" {
		return nil, ir.Configuration("instr.new", "instrument has no name")
	}
	declared := make(map[string]bool, len(parameters))
	for _, p := range parameters {
		if declared[p.Name] {
			return nil, ir.Configuration("instr.new", "%s: parameter %q declared twice", name, p.Name)
		}
		declared[p.Name] = true
	}
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if seen[c.Name] {
			return nil, ir.Configuration("instr.new", "%s: component %q declared twice", name, c.Name)
		}
		seen[c.Name] = true
		for _, u := range c.Uses {
			if !declared[u] {
				return nil, ir.Configuration("instr.new",
					"%s: component %q uses unknown parameter %q", name, c.Name, u)
			}
		}
	}
	return &Instrument{
		name:       name,
		parameters: slices.Clone(parameters),
		components: slices.Clone(components),
	}, nil
}

// Name returns the instrument name.
func (in *Instrument) Name() string { return in.name }

// Parameters returns the declared parameters in declaration order.
func (in *Instrument) Parameters() []Parameter { return slices.Clone(in.parameters) }

// Components returns the beam path in order.
func (in *Instrument) Components() []Component { return slices.Clone(in.components) }

// ParameterNames returns the declared parameter names in order.
func (in *Instrument) ParameterNames() []string {
	out := make([]string, len(in.parameters))
	for i, p := range in.parameters {
		out[i] = p.Name
	}
	return out
}

// Parameter returns the declaration for name.
func (in *Instrument) Parameter(name string) (Parameter, bool) {
	for _, p := range in.parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// HasParameter reports whether name is declared.
func (in *Instrument) HasParameter(name string) bool {
	_, ok := in.Parameter(name)
	return ok
}

// HasComponent reports whether the beam path contains a component named name.
func (in *Instrument) HasComponent(name string) bool {
	return in.componentIndex(name) >= 0
}

func (in *Instrument) componentIndex(name string) int {
	return slices.IndexFunc(in.components, func(c Component) bool { return c.Name == name })
}

// Complete returns the full parameter point for a run: every declared
// parameter takes its value from p, else its default. Names in p that the
// instrument does not declare are ignored, as are declared names in skip.
// A parameter with neither value nor default is a configuration error.
func (in *Instrument) Complete(p ir.Point, skip ...string) (ir.Point, error) {
	var out ir.Point
	for _, param := range in.parameters {
		if slices.Contains(skip, param.Name) {
			continue
		}
		if v, ok := p.Get(param.Name); ok {
			out.Set(param.Name, v)
			continue
		}
		if param.Default == nil {
			return ir.Point{}, ir.Configuration("instr.complete",
				"%s: parameter %q has no default and no value", in.name, param.Name)
		}
		out.Set(param.Name, param.Default)
	}
	return out, nil
}

// Source is the canonical JSON rendering of the model. Two models with the
// same parameters and components render identically regardless of how the
// CUE text was laid out.
func (in *Instrument) Source() string {
	params := make(map[string]any, len(in.parameters))
	for _, p := range in.parameters {
		entry := map[string]any{"type": string(p.Type)}
		if p.Default != nil {
			entry["default"] = p.Default
		}
		params[p.Name] = entry
	}
	comps := make([]any, len(in.components))
	for i, c := range in.components {
		comps[i] = map[string]any{"name": c.Name, "type": c.Type, "uses": c.Uses}
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"name":       in.name,
		"parameters": params,
		"components": comps,
	})
	if err != nil {
		// Defaults are validated finite on load; nothing else can fail.
		panic(fmt.Sprintf("instr: canonical source of %s: %v", in.name, err))
	}
	return string(data) + "\n"
}
