package engine

import (
	"log/slog"
	"time"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Config carries the collaborators for a rule pass. Zero values get safe
// defaults: default bounds, no sink, a fresh clock, wall-clock time.
type Config struct {
	// Bounds is the overlay clamp range.
	Bounds world.Bounds

	// Sink receives audit records as they are produced. Nil means audit
	// records exist only in the returned TurnAudit.
	Sink Sink

	// Clock issues audit sequence numbers. Nil means a fresh clock,
	// which is fine for single runs but wrong when resuming.
	Clock *Clock

	// Now supplies audit timestamps. Nil means time.Now.
	Now func() time.Time

	// Logger receives structured evaluation logs. Nil means slog.Default.
	Logger *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if !cfg.Bounds.Valid() {
		cfg.Bounds = world.DefaultBounds
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// RunRules evaluates and applies every rule against the state, in the
// order given. Callers pass registry.ActiveRules() output, which is
// already priority-sorted; RunRules does not re-sort.
//
// The state is mutated in place. Rules whose conditions do not hold are
// skipped without an audit record (their warnings still land on the turn
// audit). Effect failures audit the rule as failed and evaluation
// continues with the next rule.
func RunRules(s *world.State, rules []rule.Rule, cfg Config) TurnAudit {
	cfg = cfg.withDefaults()
	log := cfg.Logger

	audit := TurnAudit{Turn: s.Turn}
	for _, r := range rules {
		holds, warnings := Evaluate(r, s)
		audit.Warnings = append(audit.Warnings, warnings...)
		for _, w := range warnings {
			log.Warn("condition warning",
				"rule_id", w.RuleID,
				"path", w.Path,
				"message", w.Message)
		}
		if !holds {
			log.Debug("rule skipped", "rule_id", r.ID, "turn", s.Turn)
			continue
		}

		rec := AuditRecord{
			RuleID:    r.ID,
			Turn:      s.Turn,
			Seq:       cfg.Clock.Next(),
			Timestamp: cfg.Now(),
		}

		if r.Inert() {
			rec.Status = StatusInert
			log.Debug("rule matched with no effects", "rule_id", r.ID, "turn", s.Turn)
		} else {
			applied, err := Apply(r, s, cfg.Bounds)
			rec.Effects = applied
			if err != nil {
				rec.Status = StatusFailed
				rec.Error = err.Error()
				log.Error("rule effects failed",
					"rule_id", r.ID,
					"turn", s.Turn,
					"applied", len(applied),
					"error", err)
			} else {
				rec.Status = StatusFired
				log.Info("rule fired",
					"rule_id", r.ID,
					"turn", s.Turn,
					"effects", len(applied))
			}
		}

		audit.Records = append(audit.Records, rec)
		emit(cfg.Sink, rec, log)
	}
	return audit
}
