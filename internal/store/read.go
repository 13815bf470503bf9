package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a unit is not in the ledger.
var ErrNotFound = errors.New("not found")

const runColumns = `seq, id, module, input_hash, config_hash, unit_hash, compiler_version, ir_version, label`

// First returns the earliest run recorded for key, which is the reference
// every later run is compared against.
func (s *Store) First(ctx context.Context, key Key) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE input_hash = ? AND config_hash = ? AND compiler_version = ? AND ir_version = ?
		ORDER BY seq ASC
		LIMIT 1
	`, key.InputHash, key.ConfigHash, key.CompilerVersion, key.IRVersion)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query first run: %w", err)
	}
	return run, true, nil
}

// Runs returns every run of module in recording order. An empty module
// returns all runs.
func (s *Store) Runs(ctx context.Context, module string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE ? = '' OR module = ?
		ORDER BY seq ASC
	`, module, module)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Conflict is a key under which different units were recorded.
type Conflict struct {
	Key
	Module string
	// UnitHashes are the distinct fingerprints in order of first
	// appearance.
	UnitHashes []string
}

// Conflicts lists every key with more than one distinct unit fingerprint.
func (s *Store) Conflicts(ctx context.Context) ([]Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.input_hash, r.config_hash, r.compiler_version, r.ir_version, r.module, r.unit_hash
		FROM runs r
		JOIN (
			SELECT input_hash, config_hash, compiler_version, ir_version
			FROM runs
			GROUP BY input_hash, config_hash, compiler_version, ir_version
			HAVING COUNT(DISTINCT unit_hash) > 1
		) k USING (input_hash, config_hash, compiler_version, ir_version)
		GROUP BY r.input_hash, r.config_hash, r.compiler_version, r.ir_version, r.unit_hash
		ORDER BY MIN(r.seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	index := make(map[Key]int)
	for rows.Next() {
		var k Key
		var module, hash string
		if err := rows.Scan(&k.InputHash, &k.ConfigHash, &k.CompilerVersion, &k.IRVersion, &module, &hash); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Conflict{Key: k, Module: module})
		}
		out[i].UnitHashes = append(out[i].UnitHashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return out, nil
}

// Unit returns the canonical bytes stored under hash.
func (s *Store) Unit(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT canonical FROM units WHERE hash = ?`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query unit: %w", err)
	}
	return data, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	err := sc.Scan(&r.Seq, &r.ID, &r.Module, &r.InputHash, &r.ConfigHash, &r.UnitHash,
		&r.CompilerVersion, &r.IRVersion, &r.Label)
	return r, err
}
