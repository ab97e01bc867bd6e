package sim

import (
	"log/slog"
	"time"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/retro"
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Simulator drives turns over a world state. It owns no state itself;
// every Simulate* call operates on caller-provided states, so one
// Simulator can serve many independent runs.
type Simulator struct {
	registry  *rule.Registry
	bounds    world.Bounds
	decay     DecayPolicy
	gravity   GravityCorrection
	learning  LearningHook
	sink      engine.Sink
	clock     *engine.Clock
	now       func() time.Time
	tokens    TokenGenerator
	retro     *retro.Engine
	snapshots SnapshotSource
	log       *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithBounds sets the overlay clamp range.
func WithBounds(b world.Bounds) Option {
	return func(s *Simulator) {
		if b.Valid() {
			s.bounds = b
		}
	}
}

// WithDecay installs a decay policy, applied before rules each turn.
func WithDecay(d DecayPolicy) Option {
	return func(s *Simulator) { s.decay = d }
}

// WithGravity installs a gravity correction, applied after rules.
func WithGravity(g GravityCorrection) Option {
	return func(s *Simulator) { s.gravity = g }
}

// WithLearning installs a learning hook, observing each completed turn.
func WithLearning(l LearningHook) Option {
	return func(s *Simulator) { s.learning = l }
}

// WithAuditSink streams audit records to a sink as turns execute.
func WithAuditSink(sink engine.Sink) Option {
	return func(s *Simulator) { s.sink = sink }
}

// WithClock replaces the audit sequence clock. Pass a persisted clock
// when resuming a run.
func WithClock(c *engine.Clock) Option {
	return func(s *Simulator) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTimeSource replaces the audit timestamp source.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenGenerator replaces the run token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Simulator) {
		if g != nil {
			s.tokens = g
		}
	}
}

// WithRetroEngine installs the reverse inference engine used by
// SimulateBackward.
func WithRetroEngine(e *retro.Engine) Option {
	return func(s *Simulator) { s.retro = e }
}

// WithSnapshotSource installs the ground-truth source used by
// SimulateBackward.
func WithSnapshotSource(src SnapshotSource) Option {
	return func(s *Simulator) { s.snapshots = src }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Simulator) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Simulator over a rule registry.
func New(reg *rule.Registry, opts ...Option) *Simulator {
	s := &Simulator{
		registry: reg,
		bounds:   world.DefaultBounds,
		clock:    engine.NewClock(),
		now:      time.Now,
		tokens:   UUIDv7Generator{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TurnResult describes one executed turn.
type TurnResult struct {
	// Turn is the counter value the turn executed at (pre-increment).
	Turn int64 `json:"turn"`

	// Audit is the rule-by-rule outcome of the turn.
	Audit engine.TurnAudit `json:"audit"`

	// Delta is the net state change across the whole turn, hooks
	// included.
	Delta world.Delta `json:"delta"`

	// StateHash identifies the post-turn state.
	StateHash string `json:"state_hash"`
}

// SimulateTurn executes one full turn pipeline against the state, in
// place: decay, rules, gravity, learning, then the turn counter advances
// exactly once. Hooks left unset are skipped.
func (s *Simulator) SimulateTurn(state *world.State) (TurnResult, error) {
	before := state.Clone()

	if s.decay != nil {
		s.decay.Decay(state, s.bounds)
	}

	audit := engine.RunRules(state, s.registry.ActiveRules(), engine.Config{
		Bounds: s.bounds,
		Sink:   s.sink,
		Clock:  s.clock,
		Now:    s.now,
		Logger: s.log,
	})

	if s.gravity != nil {
		s.gravity.Correct(state, s.bounds)
	}
	if s.learning != nil {
		s.learning.Observe(state, audit)
	}

	delta := world.Diff(before, state)
	state.Turn++

	hash, err := world.StateHash(state)
	if err != nil {
		return TurnResult{}, err
	}

	s.log.Debug("turn complete",
		"turn", audit.Turn,
		"fired", len(audit.Fired()),
		"failed", len(audit.Failed()),
		"delta_paths", len(delta))

	return TurnResult{
		Turn:      audit.Turn,
		Audit:     audit,
		Delta:     delta,
		StateHash: hash,
	}, nil
}
