package execute

import (
	"fmt"
	"strconv"

	"github.com/roach88/restage/internal/ir"
)

// RuntimeOptions are the simulation flags shared by every point of a scan.
type RuntimeOptions struct {
	Seed        *int64
	Count       int64 // requested particles; 0 = tool default
	Trace       bool
	Gravitation bool
	BufSize     int64
	Format      string
}

// Args renders the command line of one invocation: runtime flags, the
// output directory, then name=value for every parameter in order.
func Args(opts RuntimeOptions, dir string, params ir.Point) []string {
	var args []string
	if opts.Seed != nil {
		args = append(args, "--seed="+strconv.FormatInt(*opts.Seed, 10))
	}
	if opts.Count > 0 {
		args = append(args, "--ncount="+strconv.FormatInt(opts.Count, 10))
	}
	if dir != "" {
		args = append(args, "--dir="+dir)
	}
	if opts.Trace {
		args = append(args, "--trace")
	}
	if opts.Gravitation {
		args = append(args, "--gravitation")
	}
	if opts.BufSize > 0 {
		args = append(args, "--bufsiz="+strconv.FormatInt(opts.BufSize, 10))
	}
	if opts.Format != "" {
		args = append(args, "--format="+opts.Format)
	}
	for _, pair := range params.Pairs() {
		args = append(args, fmt.Sprintf("%s=%s", pair.Name, pair.Value))
	}
	return args
}
