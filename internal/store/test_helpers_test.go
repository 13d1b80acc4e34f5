package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/restage/internal/ir"
)

// createTestStore creates a new SQLite store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backend is the surface both stores share.
type backend interface {
	InsertArtifact(ctx context.Context, a ir.Artifact) (ir.Artifact, bool, error)
	FindArtifacts(ctx context.Context, fingerprint, source string) ([]ir.Artifact, error)
	GetArtifact(ctx context.Context, id string) (ir.Artifact, bool, error)
	ListArtifacts(ctx context.Context) ([]ir.Artifact, error)
	ResultTable(ctx context.Context, artifactID string) (ir.ResultTable, bool, error)
	CreateResultTable(ctx context.Context, t ir.ResultTable) (ir.ResultTable, error)
	InsertRecord(ctx context.Context, t ir.ResultTable, r ir.Record) error
	FindRecords(ctx context.Context, t ir.ResultTable, q ir.Record) ([]ir.Record, error)
	ListRecords(ctx context.Context, t ir.ResultTable) ([]ir.Record, error)
}

// eachBackend runs fn against a fresh SQLite store and a fresh MemStore.
func eachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemStore()) })
}

// createTestArtifact creates a test artifact with minimal required fields.
func createTestArtifact(id, source string) ir.Artifact {
	return ir.Artifact{
		ID:               id,
		Name:             "bifrost_upstream",
		Fingerprint:      ir.Fingerprint(source),
		Source:           source,
		BinaryPath:       "/bin/" + id + "/bifrost_upstream.out",
		ToolchainVersion: "3.5.1",
		CreatedAt:        time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

// createTestRecord creates a record with the given point.
func createTestRecord(id string, count int64, p ir.Point) ir.Record {
	return ir.Record{
		ID:        id,
		Point:     p,
		Tolerance: ir.Tolerances(p, nil),
		Count:     count,
		Output:    "/data/" + id + "/" + id + ".mcpl.gz",
	}
}
