package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/queryir"
	"github.com/roach88/restage/internal/querysql"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const artifactColumns = `id, name, fingerprint, source, binary_path, toolchain_version, created_at`

// FindArtifacts returns every artifact whose fingerprint and source text
// both match. More than one result means the cache is corrupt; the caller
// decides how to report it.
func (s *Store) FindArtifacts(ctx context.Context, fingerprint, source string) ([]ir.Artifact, error) {
	arts, err := findArtifacts(ctx, s.db, fingerprint, source)
	if err != nil {
		return nil, fmt.Errorf("find artifacts: %w", err)
	}
	return arts, nil
}

func findArtifacts(ctx context.Context, q querier, fingerprint, source string) ([]ir.Artifact, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM artifacts
		WHERE fingerprint = ? AND source = ?
		ORDER BY id COLLATE BINARY ASC
	`, fingerprint, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// GetArtifact returns the artifact with id.
func (s *Store) GetArtifact(ctx context.Context, id string) (ir.Artifact, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	defer rows.Close()
	arts, err := scanArtifacts(rows)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	if len(arts) == 0 {
		return ir.Artifact{}, false, nil
	}
	return arts[0], true, nil
}

// ListArtifacts returns every artifact ordered by creation time, then id.
func (s *Store) ListArtifacts(ctx context.Context) ([]ir.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM artifacts
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	arts, err := scanArtifacts(rows)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return arts, nil
}

func scanArtifacts(rows *sql.Rows) ([]ir.Artifact, error) {
	var arts []ir.Artifact
	for rows.Next() {
		var a ir.Artifact
		var created string
		if err := rows.Scan(&a.ID, &a.Name, &a.Fingerprint, &a.Source,
			&a.BinaryPath, &a.ToolchainVersion, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = t
		arts = append(arts, a)
	}
	return arts, rows.Err()
}

// ResultTable returns the descriptor owned by artifactID.
func (s *Store) ResultTable(ctx context.Context, artifactID string) (ir.ResultTable, bool, error) {
	t, found, err := resultTable(ctx, s.db, artifactID)
	if err != nil {
		return ir.ResultTable{}, false, fmt.Errorf("result table: %w", err)
	}
	return t, found, nil
}

func resultTable(ctx context.Context, q querier, artifactID string) (ir.ResultTable, bool, error) {
	var t ir.ResultTable
	var names string
	err := q.QueryRowContext(ctx, `
		SELECT id, artifact_id, parameter_names
		FROM result_tables
		WHERE artifact_id = ?
	`, artifactID).Scan(&t.ID, &t.ArtifactID, &names)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ResultTable{}, false, nil
	}
	if err != nil {
		return ir.ResultTable{}, false, err
	}
	t.ParameterNames, err = unmarshalNames(names)
	if err != nil {
		return ir.ResultTable{}, false, err
	}
	return t, true, nil
}

// FindRecords returns the records of t that match query q: numeric
// parameters inside q's windows, categorical parameters equal, and seed,
// count and gravitation filters as set on q. Results are ordered by id.
func (s *Store) FindRecords(ctx context.Context, t ir.ResultTable, q ir.Record) ([]ir.Record, error) {
	pred := queryir.Lookup(q, ParamColumn)
	return s.selectRecords(ctx, t, pred)
}

// ListRecords returns every record of t ordered by id.
func (s *Store) ListRecords(ctx context.Context, t ir.ResultTable) ([]ir.Record, error) {
	return s.selectRecords(ctx, t, nil)
}

func (s *Store) selectRecords(ctx context.Context, t ir.ResultTable, pred queryir.Predicate) ([]ir.Record, error) {
	storage, err := StorageName(t.ID)
	if err != nil {
		return nil, err
	}
	exists, err := s.hasStorage(ctx, storage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	columns := []string{"id", "seed", "count", "gravitation", "output", "tolerance"}
	for _, n := range t.ParameterNames {
		columns = append(columns, ParamColumn(n))
	}
	query, params, err := querysql.NewSQLCompiler().Compile(queryir.Select{
		From:    storage,
		Filter:  pred,
		Columns: columns,
	})
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var out []ir.Record
	for rows.Next() {
		var (
			r         ir.Record
			seed      sql.NullInt64
			grav      int
			tolerance string
		)
		raw := make([]any, len(t.ParameterNames))
		dest := []any{&r.ID, &seed, &r.Count, &grav, &r.Output, &tolerance}
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.TableID = t.ID
		r.Gravitation = grav != 0
		if seed.Valid {
			v := seed.Int64
			r.Seed = &v
		}
		if r.Tolerance, err = unmarshalTolerance(tolerance); err != nil {
			return nil, err
		}
		r.Point = ir.NewPoint()
		for i, name := range t.ParameterNames {
			v, ok := scannedValue(raw[i])
			if !ok {
				return nil, ir.CacheIntegrity("store.record", "record %s has no value for %s", r.ID, name)
			}
			r.Point.Set(name, v)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
