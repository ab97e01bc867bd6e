package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/retrograde-sim/retrograde/internal/world"
)

// WriteSnapshot persists the full flattened state for one turn of a run.
// Idempotent per (run_token, turn): writing the same turn again is a
// no-op. Writing a different state for an already-stored turn is also a
// no-op, surfaced as a hash mismatch error so replays that drifted are
// caught instead of silently shadowed.
func (s *Store) WriteSnapshot(ctx context.Context, runToken string, state *world.State) error {
	hash, err := world.StateHash(state)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	payload, err := world.MarshalCanonical(state)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_token, turn, state_hash, state_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_token, turn) DO NOTHING
	`, runToken, state.Turn, hash, string(payload))
	if err != nil {
		return fmt.Errorf("write snapshot run=%s turn=%d: %w", runToken, state.Turn, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write snapshot run=%s turn=%d: %w", runToken, state.Turn, err)
	}
	if inserted == 0 {
		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT state_hash FROM snapshots WHERE run_token = ? AND turn = ?`,
			runToken, state.Turn).Scan(&existing)
		if err != nil {
			return fmt.Errorf("write snapshot run=%s turn=%d: %w", runToken, state.Turn, err)
		}
		if existing != hash {
			return fmt.Errorf("snapshot conflict run=%s turn=%d: stored hash %s, new hash %s",
				runToken, state.Turn, existing, hash)
		}
	}
	return nil
}

// ReadSnapshot loads the stored state for one turn of a run. Returns
// (nil, nil) when no snapshot exists for that turn.
func (s *Store) ReadSnapshot(ctx context.Context, runToken string, turn int64) (*world.State, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM snapshots WHERE run_token = ? AND turn = ?`,
		runToken, turn).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot run=%s turn=%d: %w", runToken, turn, err)
	}

	var state world.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("read snapshot run=%s turn=%d: %w", runToken, turn, err)
	}
	if state.Overlays == nil {
		state.Overlays = make(map[string]float64)
	}
	if state.Variables == nil {
		state.Variables = make(map[string]float64)
	}
	return &state, nil
}

// Turns returns the turns with stored snapshots for a run, ascending.
func (s *Store) Turns(ctx context.Context, runToken string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn FROM snapshots WHERE run_token = ? ORDER BY turn ASC`, runToken)
	if err != nil {
		return nil, fmt.Errorf("list turns run=%s: %w", runToken, err)
	}
	defer rows.Close()

	var turns []int64
	for rows.Next() {
		var t int64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("list turns run=%s: %w", runToken, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// RunSnapshots adapts one run's snapshots to the simulator's
// ground-truth interface.
type RunSnapshots struct {
	store    *Store
	runToken string
}

// Snapshots returns a snapshot source scoped to one run, for backward
// simulation.
func (s *Store) Snapshots(runToken string) *RunSnapshots {
	return &RunSnapshots{store: s, runToken: runToken}
}

// GetSnapshot returns the flattened state for a turn, or nil when no
// snapshot exists.
func (src *RunSnapshots) GetSnapshot(ctx context.Context, turn int64) (map[string]float64, error) {
	state, err := src.store.ReadSnapshot(ctx, src.runToken, turn)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	return state.PathMap(), nil
}
