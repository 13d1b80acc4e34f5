package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/queryir"
)

// MemStore is an in-process backend with the same semantics as Store.
// Artifacts are indexed by (fingerprint, id) and records by id, each in an
// ordered B-tree, so scans come back in the same order as the SQL backend.
type MemStore struct {
	mu        sync.RWMutex
	artifacts *btree.BTreeG[ir.Artifact]
	tables    map[string]ir.ResultTable // by artifact id
	records   map[string]*btree.BTreeG[ir.Record]
}

func artifactLess(a, b ir.Artifact) bool {
	if a.Fingerprint != b.Fingerprint {
		return a.Fingerprint < b.Fingerprint
	}
	return a.ID < b.ID
}

func recordLess(a, b ir.Record) bool {
	return a.ID < b.ID
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		artifacts: btree.NewG(8, artifactLess),
		tables:    make(map[string]ir.ResultTable),
		records:   make(map[string]*btree.BTreeG[ir.Record]),
	}
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// FindArtifacts returns artifacts matching fingerprint and source.
func (m *MemStore) FindArtifacts(_ context.Context, fingerprint, source string) ([]ir.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findArtifacts(fingerprint, source), nil
}

func (m *MemStore) findArtifacts(fingerprint, source string) []ir.Artifact {
	var out []ir.Artifact
	m.artifacts.AscendGreaterOrEqual(ir.Artifact{Fingerprint: fingerprint}, func(a ir.Artifact) bool {
		if a.Fingerprint != fingerprint {
			return false
		}
		if a.Source == source {
			out = append(out, a)
		}
		return true
	})
	return out
}

// AddArtifactRow inserts a without any existence check. It exists so tests
// can reproduce a corrupt cache.
func (m *MemStore) AddArtifactRow(a ir.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts.ReplaceOrInsert(a)
}

// InsertArtifact stores a unless an identical artifact exists.
func (m *MemStore) InsertArtifact(_ context.Context, a ir.Artifact) (ir.Artifact, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.findArtifacts(a.Fingerprint, a.Source)
	switch len(existing) {
	case 0:
		m.artifacts.ReplaceOrInsert(a)
		return a, true, nil
	case 1:
		return existing[0], false, nil
	default:
		return ir.Artifact{}, false, ir.CacheIntegrity("store.artifact",
			"%d artifacts share fingerprint %s", len(existing), a.Fingerprint)
	}
}

// GetArtifact returns the artifact with id.
func (m *MemStore) GetArtifact(_ context.Context, id string) (ir.Artifact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found, ok := m.artifactByID(id)
	return found, ok, nil
}

func (m *MemStore) artifactByID(id string) (ir.Artifact, bool) {
	var found ir.Artifact
	ok := false
	m.artifacts.Ascend(func(a ir.Artifact) bool {
		if a.ID == id {
			found, ok = a, true
			return false
		}
		return true
	})
	return found, ok
}

// ListArtifacts returns every artifact ordered by creation time, then id.
func (m *MemStore) ListArtifacts(_ context.Context) ([]ir.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ir.Artifact, 0, m.artifacts.Len())
	m.artifacts.Ascend(func(a ir.Artifact) bool {
		out = append(out, a)
		return true
	})
	slices.SortStableFunc(out, func(a, b ir.Artifact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ResultTable returns the descriptor owned by artifactID.
func (m *MemStore) ResultTable(_ context.Context, artifactID string) (ir.ResultTable, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[artifactID]
	return t, ok, nil
}

// CreateResultTable stores t unless its artifact already has a descriptor.
func (m *MemStore) CreateResultTable(_ context.Context, t ir.ResultTable) (ir.ResultTable, error) {
	if err := ValidateParameterNames(t.ParameterNames); err != nil {
		return ir.ResultTable{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artifactByID(t.ArtifactID); !ok {
		return ir.ResultTable{}, ir.CacheIntegrity("store.table", "no artifact %s", t.ArtifactID)
	}
	if existing, ok := m.tables[t.ArtifactID]; ok {
		return existing, nil
	}
	t.ParameterNames = slices.Clone(t.ParameterNames)
	m.tables[t.ArtifactID] = t
	return t, nil
}

// InsertRecord appends r, creating t's record index on first use.
func (m *MemStore) InsertRecord(_ context.Context, t ir.ResultTable, r ir.Record) error {
	if !t.SameNames(r.Point.Names()) {
		return ir.Configuration("store.record", "record parameters %v do not match table %v",
			r.Point.Names(), t.ParameterNames)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, ok := m.records[t.ID]
	if !ok {
		tree = btree.NewG(16, recordLess)
		m.records[t.ID] = tree
	}
	if tree.Has(ir.Record{ID: r.ID}) {
		return fmt.Errorf("insert record: duplicate id %s", r.ID)
	}
	r.TableID = t.ID
	r.Point = r.Point.Clone()
	tree.ReplaceOrInsert(r)
	return nil
}

// FindRecords returns the records of t matching q, ordered by id.
func (m *MemStore) FindRecords(_ context.Context, t ir.ResultTable, q ir.Record) ([]ir.Record, error) {
	return m.selectRecords(t, queryir.Lookup(q, ParamColumn)), nil
}

// ListRecords returns every record of t ordered by id.
func (m *MemStore) ListRecords(_ context.Context, t ir.ResultTable) ([]ir.Record, error) {
	return m.selectRecords(t, nil), nil
}

func (m *MemStore) selectRecords(t ir.ResultTable, pred queryir.Predicate) []ir.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.records[t.ID]
	if !ok {
		return nil
	}
	var out []ir.Record
	tree.Ascend(func(r ir.Record) bool {
		if queryir.Match(pred, recordRow(r)) {
			out = append(out, r)
		}
		return true
	})
	return out
}

// recordRow exposes a record under the SQL backend's column names.
func recordRow(r ir.Record) queryir.Row {
	return func(column string) (ir.Value, bool) {
		switch column {
		case queryir.ColumnID:
			return ir.Str(r.ID), true
		case queryir.ColumnSeed:
			if r.Seed == nil {
				return nil, false
			}
			return ir.Int(*r.Seed), true
		case queryir.ColumnCount:
			return ir.Int(r.Count), true
		case queryir.ColumnGravitation:
			if r.Gravitation {
				return ir.Int(1), true
			}
			return ir.Int(0), true
		case queryir.ColumnOutput:
			return ir.Str(r.Output), true
		}
		if name, ok := strings.CutPrefix(column, "p_"); ok {
			return r.Point.Get(name)
		}
		return nil, false
	}
}
