package cache

import (
	"context"

	"github.com/roach88/restage/internal/ir"
)

// Backend is the persistent store behind both caches. store.Store and
// store.MemStore implement it.
type Backend interface {
	FindArtifacts(ctx context.Context, fingerprint, source string) ([]ir.Artifact, error)
	InsertArtifact(ctx context.Context, a ir.Artifact) (stored ir.Artifact, inserted bool, err error)
	GetArtifact(ctx context.Context, id string) (ir.Artifact, bool, error)
	ListArtifacts(ctx context.Context) ([]ir.Artifact, error)

	ResultTable(ctx context.Context, artifactID string) (ir.ResultTable, bool, error)
	CreateResultTable(ctx context.Context, t ir.ResultTable) (ir.ResultTable, error)
	InsertRecord(ctx context.Context, t ir.ResultTable, r ir.Record) error
	FindRecords(ctx context.Context, t ir.ResultTable, q ir.Record) ([]ir.Record, error)
	ListRecords(ctx context.Context, t ir.ResultTable) ([]ir.Record, error)
}
