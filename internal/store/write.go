package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Key identifies what a compilation depends on.
type Key struct {
	InputHash       string
	ConfigHash      string
	CompilerVersion string
	IRVersion       string
}

// Run is one recorded compilation.
type Run struct {
	ID     string
	Seq    int64
	Module string
	Key
	UnitHash string
	// Label is free text, such as a host name or CI job.
	Label string
}

// RecordRun stores the unit's canonical bytes under unitHash and appends
// a run. It returns the run with its generated ID and sequence number.
// Storing a unit that is already present is a no-op.
func (s *Store) RecordRun(ctx context.Context, module string, key Key, unitHash string, canonical []byte, label string) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO units (hash, module, canonical)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, unitHash, module, canonical)
	if err != nil {
		return Run{}, fmt.Errorf("record unit: %w", err)
	}

	run := Run{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Module:   module,
		Key:      key,
		UnitHash: unitHash,
		Label:    label,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, module, input_hash, config_hash, unit_hash, compiler_version, ir_version, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Module,
		key.InputHash,
		key.ConfigHash,
		unitHash,
		key.CompilerVersion,
		key.IRVersion,
		label,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.Seq, err = res.LastInsertId(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}
