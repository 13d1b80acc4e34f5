// Package ir provides the shared record types for restage.
//
// This package contains the value model, parameter points, tolerance
// defaulting, cache records, content-addressed identities and the error
// kinds every other package reports. All other internal packages import ir;
// ir imports nothing internal.
//
// Key design constraints:
//   - Parameter points are ordered; iteration order is declaration order
//   - Fingerprints are exact: SHA-256 over the exact source bytes, never fuzzy
//   - Tolerances always come from the querying point, never the stored one
//   - Record ids double as working-directory names and must be unique
package ir
