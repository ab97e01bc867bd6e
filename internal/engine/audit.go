package engine

import (
	"log/slog"
	"time"
)

// Status classifies the outcome of one rule evaluation.
type Status string

const (
	// StatusFired means conditions held and all effects applied.
	StatusFired Status = "fired"

	// StatusFailed means conditions held but an effect failed; effects
	// before the failure stayed applied.
	StatusFailed Status = "failed"

	// StatusInert means conditions held but the rule has no effects.
	StatusInert Status = "inert"
)

// Warning is a non-fatal observation recorded during evaluation, such as
// a condition path that resolved to neither namespace.
type Warning struct {
	RuleID  string `json:"rule_id"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// EffectApplied describes one successful effect mutation.
type EffectApplied struct {
	Path    string  `json:"path"`
	Action  string  `json:"action"`
	Old     float64 `json:"old"`
	New     float64 `json:"new"`
	Created bool    `json:"created,omitempty"`
}

// AuditRecord describes the outcome of one rule within one turn. Skipped
// rules (conditions false) get no record; their warnings, if any, land on
// the turn audit instead.
type AuditRecord struct {
	RuleID    string          `json:"rule_id"`
	Turn      int64           `json:"turn"`
	Seq       int64           `json:"seq"`
	Status    Status          `json:"status"`
	Effects   []EffectApplied `json:"effects,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TurnAudit collects everything that happened during one turn.
type TurnAudit struct {
	Turn     int64         `json:"turn"`
	Records  []AuditRecord `json:"records"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// Fired returns the IDs of rules that fired this turn, in firing order.
func (a TurnAudit) Fired() []string {
	return a.byStatus(StatusFired)
}

// Failed returns the IDs of rules whose effects failed this turn.
func (a TurnAudit) Failed() []string {
	return a.byStatus(StatusFailed)
}

// Inert returns the IDs of effect-less rules that matched this turn.
func (a TurnAudit) Inert() []string {
	return a.byStatus(StatusInert)
}

func (a TurnAudit) byStatus(st Status) []string {
	var ids []string
	for _, r := range a.Records {
		if r.Status == st {
			ids = append(ids, r.RuleID)
		}
	}
	return ids
}

// Sink receives audit records as they are produced. Implementations must
// not block for long; a slow sink slows the whole run. Sink failures are
// the sink's problem: the engine never aborts a turn because a sink
// misbehaved.
type Sink interface {
	Record(rec AuditRecord)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec AuditRecord)

// Record implements Sink.
func (f SinkFunc) Record(rec AuditRecord) { f(rec) }

// emit delivers a record to the sink, swallowing panics. A panicking
// sink must not take the simulation down with it.
func emit(sink Sink, rec AuditRecord, log *slog.Logger) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("audit sink panicked",
				"rule_id", rec.RuleID,
				"turn", rec.Turn,
				"panic", r)
		}
	}()
	sink.Record(rec)
}
