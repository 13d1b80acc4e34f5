// Package summary reads, merges and writes McCode detector summaries.
//
// A run directory holds a mccode.sim file made of sections:
//
//	begin simulation: out
//	  Ncount: 10000
//	end simulation
//
//	begin data
//	  component: monitor
//	  values: 1.5 0.1 10000
//	end data
//
// Repeated sub-runs of one point are merged into a single file (intensity
// summed, errors in quadrature). A scan of many points is summarised by a
// combined mccode.sim header and a mccode.dat table with one row per point.
package summary
