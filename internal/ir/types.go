package ir

import (
	"slices"
	"time"
)

// Artifact is a compiled instrument, keyed by the exact fingerprint of its
// source text. Artifacts are created on first cache miss and are
// never mutated or deleted.
type Artifact struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Fingerprint      string    `json:"fingerprint"`
	Source           string    `json:"source"`
	BinaryPath       string    `json:"binary_path"`
	ToolchainVersion string    `json:"toolchain_version"`
	CreatedAt        time.Time `json:"created_at"`
}

// ResultTable describes the fixed schema of one artifact's cached runs.
// ParameterNames never changes after creation.
type ResultTable struct {
	ID             string   `json:"id"`
	ArtifactID     string   `json:"artifact_id"`
	ParameterNames []string `json:"parameter_names"`
}

// SameNames reports whether names is the table's parameter set, ignoring order.
func (t ResultTable) SameNames(names []string) bool {
	if len(names) != len(t.ParameterNames) {
		return false
	}
	a := slices.Clone(t.ParameterNames)
	b := slices.Clone(names)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Record is one completed simulation run. The ID doubles as the name of the
// run's working directory, so it must be globally unique.
//
// When a Record is used as a query, Tolerance holds the querying point's
// windows and Seed/Count act as extra equality filters when set.
type Record struct {
	ID          string             `json:"id"`
	TableID     string             `json:"table_id"`
	Point       Point              `json:"-"`
	Tolerance   map[string]float64 `json:"tolerance,omitempty"`
	Seed        *int64             `json:"seed,omitempty"`
	Count       int64              `json:"count,omitempty"` // requested particle count; 0 = unset
	Gravitation bool               `json:"gravitation"`
	Output      string             `json:"output"` // path of the emitted particle artifact
}

// NewQuery builds a lookup record for p, resolving tolerances from explicit.
func NewQuery(p Point, explicit map[string]float64, seed *int64, count int64, gravitation bool) Record {
	return Record{
		Point:       p,
		Tolerance:   Tolerances(p, explicit),
		Seed:        seed,
		Count:       count,
		Gravitation: gravitation,
	}
}

// ToleranceFor returns the window for name; zero when none was resolved.
func (r Record) ToleranceFor(name string) float64 {
	return r.Tolerance[name]
}
