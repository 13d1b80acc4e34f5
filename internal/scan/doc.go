// Package scan expands per-parameter value axes into an ordered sequence of
// parameter points.
//
// Two modes are supported:
//
//   - Zip: axes advance together. Single-valued axes broadcast to the
//     longest axis; any other length mismatch is a configuration error.
//   - Grid: the cartesian product of all axes, row-major, with the last
//     declared axis cycling fastest.
//
// Linked axes (see Axes.Link) always advance together and count as one
// dimension of a grid.
package scan
