package instr

import (
	"fmt"
	"math"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/restage/internal/ir"
)

// LoadError is a problem in an instrument description, with its CUE
// position when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads an instrument description file.
func Load(path string) (*Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ir.Wrap(ir.KindConfiguration, "instr.load", err)
	}
	return Parse(data, path)
}

// Parse builds an instrument from CUE text. filename is used for error
// positions only.
//
// Load errors are configuration errors.
func Parse(data []byte, filename string) (*Instrument, error) {
	in, err := parse(data, filename)
	if err != nil {
		return nil, ir.Wrap(ir.KindConfiguration, "instr.load", err)
	}
	return in, nil
}

func parse(data []byte, filename string) (*Instrument, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(data, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := root.LookupPath(cue.ParsePath("instrument"))
	if !v.Exists() {
		return nil, &LoadError{Field: "instrument", Message: "instrument is required", Pos: root.Pos()}
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &LoadError{Field: "instrument.name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	params, err := parseParameters(v)
	if err != nil {
		return nil, err
	}
	comps, err := parseComponents(v)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return nil, &LoadError{Field: "instrument.components", Message: "at least one component is required", Pos: v.Pos()}
	}
	return New(name, params, comps)
}

// parseParameters accepts three spellings per field:
//
//	a: 1.5                              // typed by value, with default
//	b: float                            // typed, no default
//	c: {type: "int", default: 3}        // explicit
func parseParameters(v cue.Value) ([]Parameter, error) {
	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if !paramsVal.Exists() {
		return nil, nil
	}
	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Parameter
	for iter.Next() {
		name := iter.Label()
		field := fmt.Sprintf("parameters.%s", name)
		pv := iter.Value()

		if pv.IncompleteKind() == cue.StructKind {
			p, err := parseExplicitParameter(name, field, pv)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
			continue
		}

		typ, err := kindType(pv.IncompleteKind())
		if err != nil {
			return nil, &LoadError{Field: field, Message: err.Error(), Pos: pv.Pos()}
		}
		p := Parameter{Name: name, Type: typ}
		if pv.IsConcrete() {
			p.Default, err = concreteValue(pv, typ)
			if err != nil {
				return nil, &LoadError{Field: field, Message: err.Error(), Pos: pv.Pos()}
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func parseExplicitParameter(name, field string, pv cue.Value) (Parameter, error) {
	typeVal := pv.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return Parameter{}, &LoadError{Field: field + ".type", Message: "type is required", Pos: pv.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return Parameter{}, formatCUEError(err)
	}
	typ := ParamType(typeName)
	switch typ {
	case TypeDouble, TypeInt, TypeString:
	default:
		return Parameter{}, &LoadError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown type %q (want double, int or string)", typeName),
			Pos:     typeVal.Pos(),
		}
	}

	p := Parameter{Name: name, Type: typ}
	defVal := pv.LookupPath(cue.ParsePath("default"))
	if defVal.Exists() {
		p.Default, err = concreteValue(defVal, typ)
		if err != nil {
			return Parameter{}, &LoadError{Field: field + ".default", Message: err.Error(), Pos: defVal.Pos()}
		}
	}
	return p, nil
}

func kindType(k cue.Kind) (ParamType, error) {
	switch k {
	case cue.IntKind:
		return TypeInt, nil
	case cue.FloatKind, cue.NumberKind:
		return TypeDouble, nil
	case cue.StringKind:
		return TypeString, nil
	default:
		return "", fmt.Errorf("unsupported parameter kind %s", k)
	}
}

func concreteValue(v cue.Value, typ ParamType) (ir.Value, error) {
	switch typ {
	case TypeInt:
		i, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return ir.Int(i), nil
	case TypeDouble:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("default must be finite")
		}
		return ir.Float(f), nil
	default:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return ir.Str(s), nil
	}
}

func parseComponents(v cue.Value) ([]Component, error) {
	compsVal := v.LookupPath(cue.ParsePath("components"))
	if !compsVal.Exists() {
		return nil, nil
	}
	iter, err := compsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Component
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		field := fmt.Sprintf("components[%d]", i)

		var c Component
		name, err := cv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, &LoadError{Field: field + ".name", Message: "name is required", Pos: cv.Pos()}
		}
		c.Name = name
		if typeVal := cv.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
			if c.Type, err = typeVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if usesVal := cv.LookupPath(cue.ParsePath("uses")); usesVal.Exists() {
			usesIter, err := usesVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for usesIter.Next() {
				u, err := usesIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				c.Uses = append(c.Uses, u)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
