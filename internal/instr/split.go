package instr

import (
	"slices"

	"github.com/roach88/restage/internal/ir"
)

// Split divides the instrument at the component named at.
//
// The upstream half is named <name>_upstream and keeps every component up
// to and including the boundary, followed by an MCPL_output component that
// writes the particle file named by particleParam. The downstream half is
// named <name>_downstream and starts with an MCPL_input component reading
// particleParam, followed by every component after the boundary.
//
// Each half declares exactly the parameters its components use, in the
// original declaration order, plus particleParam.
func (in *Instrument) Split(at, particleParam string) (upstream, downstream *Instrument, err error) {
	idx := in.componentIndex(at)
	if idx < 0 {
		return nil, nil, ir.Configuration("instr.split", "%s has no component %q", in.name, at)
	}
	if in.HasParameter(particleParam) {
		return nil, nil, ir.Configuration("instr.split",
			"%s already declares the particle file parameter %q", in.name, particleParam)
	}

	upComponents := slices.Clone(in.components[:idx+1])
	upComponents = append(upComponents, Component{
		Name: "mcpl_output",
		Type: TypeMCPLOutput,
		Uses: []string{particleParam},
	})
	downComponents := []Component{{
		Name: "mcpl_input",
		Type: TypeMCPLInput,
		Uses: []string{particleParam},
	}}
	downComponents = append(downComponents, in.components[idx+1:]...)

	upstream, err = New(in.name+"_upstream", in.usedBy(upComponents, particleParam), upComponents)
	if err != nil {
		return nil, nil, err
	}
	downstream, err = New(in.name+"_downstream", in.usedBy(downComponents, particleParam), downComponents)
	if err != nil {
		return nil, nil, err
	}
	return upstream, downstream, nil
}

// usedBy returns the declared parameters referenced by components, plus
// the particle file parameter.
func (in *Instrument) usedBy(components []Component, particleParam string) []Parameter {
	used := make(map[string]bool)
	for _, c := range components {
		for _, u := range c.Uses {
			used[u] = true
		}
	}
	var out []Parameter
	for _, p := range in.parameters {
		if used[p.Name] {
			out = append(out, p)
		}
	}
	return append(out, Parameter{Name: particleParam, Type: TypeString})
}
