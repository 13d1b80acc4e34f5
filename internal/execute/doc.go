// Package execute runs compiled instruments.
//
// The Executor reaches a target particle count for an upstream point by
// issuing repeated, independently seeded sub-runs, projecting each request
// from the previous yield, and merging the partial particle files and
// detector summaries into one result. Downstream runs go through RunOnce.
package execute
