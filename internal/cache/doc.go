// Package cache holds the two caches that let restage skip work.
//
// ArtifactCache maps instrument source text to a compiled binary. Lookup is
// exact: the fingerprint narrows the search and the full source text
// decides.
//
// ResultCache maps parameter points to completed simulation records. Lookup
// is fuzzy: a record matches when every numeric parameter lies within the
// querying point's tolerance window and every other parameter is equal.
// When several records match, BestMatch picks one.
//
// Both caches are explicit values built once at startup and passed to the
// components that need them; neither keeps package-level state.
package cache
