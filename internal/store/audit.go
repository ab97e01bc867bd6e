package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/query"
)

// WriteAuditRecord persists one audit record for a run. Duplicate
// (run_token, seq) pairs are rejected by the schema; replays should use
// a fresh run token instead.
func (s *Store) WriteAuditRecord(ctx context.Context, runToken string, rec engine.AuditRecord) error {
	effects, err := json.Marshal(rec.Effects)
	if err != nil {
		return fmt.Errorf("write audit record run=%s seq=%d: %w", runToken, rec.Seq, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (run_token, rule_id, turn, seq, status, effects_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runToken, rec.RuleID, rec.Turn, rec.Seq, string(rec.Status),
		string(effects), rec.Error, rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write audit record run=%s seq=%d: %w", runToken, rec.Seq, err)
	}
	return nil
}

// AuditRecords loads the audit trail for a run in logical clock order.
func (s *Store) AuditRecords(ctx context.Context, runToken string) ([]engine.AuditRecord, error) {
	return s.FilterAuditRecords(ctx, runToken, nil)
}

// FilterAuditRecords loads the audit records for a run matching a
// filter, in logical clock order. A nil filter loads the whole run.
func (s *Store) FilterAuditRecords(ctx context.Context, runToken string, f query.Filter) ([]engine.AuditRecord, error) {
	sqlText, params, err := query.Compile(runToken, f)
	if err != nil {
		return nil, fmt.Errorf("filter audit records run=%s: %w", runToken, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("read audit records run=%s: %w", runToken, err)
	}
	defer rows.Close()

	var records []engine.AuditRecord
	for rows.Next() {
		var rec engine.AuditRecord
		var status, effects, created string
		if err := rows.Scan(&rec.RuleID, &rec.Turn, &rec.Seq, &status, &effects, &rec.Error, &created); err != nil {
			return nil, fmt.Errorf("read audit records run=%s: %w", runToken, err)
		}
		rec.Status = engine.Status(status)
		if err := json.Unmarshal([]byte(effects), &rec.Effects); err != nil {
			return nil, fmt.Errorf("read audit records run=%s seq=%d: %w", runToken, rec.Seq, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.Timestamp = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AuditSink returns an engine sink that persists records for one run.
// Write failures are logged, never propagated: a broken audit store must
// not abort a simulation turn.
func (s *Store) AuditSink(runToken string, log *slog.Logger) engine.Sink {
	if log == nil {
		log = slog.Default()
	}
	return engine.SinkFunc(func(rec engine.AuditRecord) {
		if err := s.WriteAuditRecord(context.Background(), runToken, rec); err != nil {
			log.Error("audit write failed",
				"run_token", runToken,
				"rule_id", rec.RuleID,
				"seq", rec.Seq,
				"error", err)
		}
	})
}
