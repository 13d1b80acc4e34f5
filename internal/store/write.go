package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/querysql"
)

// InsertArtifact stores a unless an artifact with the same fingerprint and
// source text already exists, in which case the existing row is returned
// and inserted is false.
//
// The select and insert share one IMMEDIATE transaction, so two writers
// for the same source always end up with the same row. Finding more than
// one existing row is a cache integrity error.
func (s *Store) InsertArtifact(ctx context.Context, a ir.Artifact) (stored ir.Artifact, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("insert artifact: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := findArtifacts(ctx, tx, a.Fingerprint, a.Source)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("insert artifact: %w", err)
	}
	switch len(existing) {
	case 0:
	case 1:
		return existing[0], false, nil
	default:
		return ir.Artifact{}, false, ir.CacheIntegrity("store.artifact",
			"%d artifacts share fingerprint %s", len(existing), a.Fingerprint)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(id, name, fingerprint, source, binary_path, toolchain_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.Name,
		a.Fingerprint,
		a.Source,
		a.BinaryPath,
		a.ToolchainVersion,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Artifact{}, false, fmt.Errorf("insert artifact: commit: %w", err)
	}
	return a, true, nil
}

// CreateResultTable stores t unless its artifact already has a descriptor,
// in which case the existing descriptor is returned unchanged. Comparing
// parameter names is left to the caller.
func (s *Store) CreateResultTable(ctx context.Context, t ir.ResultTable) (ir.ResultTable, error) {
	if err := ValidateParameterNames(t.ParameterNames); err != nil {
		return ir.ResultTable{}, err
	}
	storage, err := StorageName(t.ID)
	if err != nil {
		return ir.ResultTable{}, err
	}
	names, err := marshalNames(t.ParameterNames)
	if err != nil {
		return ir.ResultTable{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.ResultTable{}, fmt.Errorf("create result table: begin tx: %w", err)
	}
	defer tx.Rollback()

	var owners int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE id = ?`, t.ArtifactID).Scan(&owners); err != nil {
		return ir.ResultTable{}, fmt.Errorf("create result table: %w", err)
	}
	if owners == 0 {
		return ir.ResultTable{}, ir.CacheIntegrity("store.table", "no artifact %s", t.ArtifactID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO result_tables (id, artifact_id, parameter_names, storage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(artifact_id) DO NOTHING
	`, t.ID, t.ArtifactID, names, storage)
	if err != nil {
		return ir.ResultTable{}, fmt.Errorf("create result table: %w", err)
	}

	stored, found, err := resultTable(ctx, tx, t.ArtifactID)
	if err != nil {
		return ir.ResultTable{}, fmt.Errorf("create result table: %w", err)
	}
	if !found {
		return ir.ResultTable{}, fmt.Errorf("create result table: descriptor for %s vanished", t.ArtifactID)
	}

	if err := tx.Commit(); err != nil {
		return ir.ResultTable{}, fmt.Errorf("create result table: commit: %w", err)
	}
	return stored, nil
}

// InsertRecord appends r to t's record storage, creating the storage on
// first use. Record ids are unique; a duplicate id is an error.
func (s *Store) InsertRecord(ctx context.Context, t ir.ResultTable, r ir.Record) error {
	storage, err := s.ensureStorage(ctx, t)
	if err != nil {
		return err
	}

	if !t.SameNames(r.Point.Names()) {
		return ir.Configuration("store.record", "record parameters %v do not match table %v",
			r.Point.Names(), t.ParameterNames)
	}

	tol, err := marshalTolerance(r.Tolerance)
	if err != nil {
		return err
	}

	columns := []string{"id", "seed", "count", "gravitation", "output", "tolerance"}
	var seed any
	if r.Seed != nil {
		seed = *r.Seed
	}
	grav := 0
	if r.Gravitation {
		grav = 1
	}
	args := []any{r.ID, seed, r.Count, grav, r.Output, tol}
	for _, name := range t.ParameterNames {
		v, _ := r.Point.Get(name)
		param, err := valueParam(v)
		if err != nil {
			return fmt.Errorf("insert record: parameter %s: %w", name, err)
		}
		columns = append(columns, ParamColumn(name))
		args = append(args, param)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = querysql.Quote(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.Quote(storage),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// ensureStorage creates the record table for t if it does not exist yet.
// Parameter columns are untyped so each value keeps its storage class.
func (s *Store) ensureStorage(ctx context.Context, t ir.ResultTable) (string, error) {
	storage, err := StorageName(t.ID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.available[storage] {
		return storage, nil
	}
	if err := ValidateParameterNames(t.ParameterNames); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", querysql.Quote(storage))
	b.WriteString(`"id" TEXT PRIMARY KEY, "seed" INTEGER, "count" INTEGER NOT NULL, `)
	b.WriteString(`"gravitation" INTEGER NOT NULL, "output" TEXT NOT NULL, "tolerance" TEXT NOT NULL`)
	for _, name := range t.ParameterNames {
		b.WriteString(", ")
		b.WriteString(querysql.Quote(ParamColumn(name)))
	}
	b.WriteString(")")

	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return "", fmt.Errorf("create record storage: %w", err)
	}
	s.available[storage] = true
	return storage, nil
}

// hasStorage reports whether t's record table exists.
func (s *Store) hasStorage(ctx context.Context, storage string) (bool, error) {
	s.mu.Lock()
	known := s.available[storage]
	s.mu.Unlock()
	if known {
		return true, nil
	}

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", storage).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record storage: %w", err)
	}

	s.mu.Lock()
	s.available[storage] = true
	s.mu.Unlock()
	return true, nil
}
