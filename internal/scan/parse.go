package scan

import (
	"strconv"
	"strings"

	"github.com/roach88/restage/internal/ir"
)

// ParseAxis parses one axis specification:
//
//	"start:step:stop"  inclusive range
//	"start:stop"       inclusive range with step 1
//	"a,b,c"            explicit list
//	"value"            singular value (number or string)
func ParseAxis(spec string) (Axis, error) {
	s := strings.TrimSpace(spec)
	if strings.Contains(s, ",") {
		var values []ir.Value
		for _, part := range strings.Split(s, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			values = append(values, ir.ParseValue(part))
		}
		if len(values) == 0 {
			return nil, ir.Configuration("scan.parse", "empty list %q", spec)
		}
		return List{Values: values}, nil
	}

	colons := strings.Count(s, ":")
	switch {
	case colons == 0:
		if s == "" {
			return nil, ir.Configuration("scan.parse", "empty value")
		}
		return Singular{Value: ir.ParseValue(s)}, nil
	case colons > 2:
		return nil, ir.Configuration("scan.parse", "range %q contains more than two colons", spec)
	}

	parts := strings.Split(s, ":")
	startText, stepText, stopText := parts[0], "1", parts[1]
	if colons == 2 {
		stepText, stopText = parts[1], parts[2]
	}
	integer := true
	var nums [3]float64
	for i, text := range []string{startText, stepText, stopText} {
		text = strings.TrimSpace(text)
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			nums[i] = float64(n)
			continue
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, ir.Configuration("scan.parse", "range %q: %q is not a number", spec, text)
		}
		nums[i] = f
		integer = false
	}
	r, err := NewRange(nums[0], nums[2], nums[1])
	if err != nil {
		return nil, err
	}
	r.Integer = integer
	return r, nil
}

// ParseAssignments parses "name=spec" arguments into ordered axes.
func ParseAssignments(args []string) (*Axes, error) {
	axes := NewAxes()
	for _, arg := range args {
		name, spec, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, ir.Configuration("scan.parse", "expected name=value, got %q", arg)
		}
		if _, dup := axes.Get(name); dup {
			return nil, ir.Configuration("scan.parse", "parameter %q given twice", name)
		}
		axis, err := ParseAxis(spec)
		if err != nil {
			return nil, err
		}
		axes.Set(name, axis)
	}
	return axes, nil
}
