// Package mcpl wraps the external MCPL particle-file tool.
//
// Restage never reads particle files itself. It only decides when to count
// and merge them; the work is done by mcpltool.
package mcpl
