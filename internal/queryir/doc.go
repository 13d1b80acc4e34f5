// Package queryir provides the abstract query representation used to look
// up cached simulation records.
//
// QueryIR is the boundary between the result cache and its storage
// backends. The cache describes a tolerance-window lookup once, and each
// backend either compiles it (querysql, for SQLite) or evaluates it
// directly against rows (the in-memory store):
//
//	[ResultCache] → [Query IR] → [SQL backend]
//	                           → [ordered-map backend]
//
// The fragment is deliberately small:
//   - Select(from, filter, columns)
//   - Predicates: Equals, Within, And
//
// It has no joins, no OR and no NULL comparisons. A record matches a
// lookup when every predicate holds, which is exactly the fuzzy-match rule:
// numeric parameters lie inside the querying point's window and everything
// else is equal.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can use
// exhaustive type switches.
package queryir
