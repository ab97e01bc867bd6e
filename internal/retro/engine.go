package retro

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Defaults for the bounded search. Chosen to keep worst-case work at
// branchWidth^maxDepth candidate expansions.
const (
	defaultMaxDepth        = 4
	defaultBranchWidth     = 3
	defaultMaxChains       = 8
	defaultMinScore        = 0.25
	defaultResidualEpsilon = 1e-6
)

// Chain is one candidate explanation: an ordered list of rules whose
// combined fingerprints account for (part of) an observed delta.
type Chain struct {
	// RuleIDs in inferred firing order (earliest first).
	RuleIDs []string `json:"rule_ids"`

	// Tags are symbolic annotations from the tagger.
	Tags []string `json:"tags,omitempty"`

	// Trust in [0, 1] from the chain's rule provenance.
	Trust float64 `json:"trust"`

	// SymbolicConfidence in [0, 1] from the tagger.
	SymbolicConfidence float64 `json:"symbolic_confidence"`

	// Score is the match quality of the chain against the delta.
	Score float64 `json:"score"`

	// Residual is the delta magnitude the chain leaves unexplained.
	Residual float64 `json:"residual"`
}

// Result is the outcome of one inference call.
type Result struct {
	// Chains are candidate explanations, best first.
	Chains []Chain `json:"chains"`

	// Gap is true when no chain met the minimum score. Not an error:
	// an honest "the registry cannot explain this" is a valid answer.
	Gap bool `json:"gap"`

	// Suggestions fingerprints the unexplained residual when Gap is
	// set. A rule with this fingerprint would close the gap.
	Suggestions rule.Fingerprint `json:"suggestions,omitempty"`

	// Warnings lists rules excluded from the search (disabled, inert).
	Warnings []string `json:"warnings,omitempty"`
}

// Registry is the read surface the engine needs from a rule registry.
type Registry interface {
	ActiveRules() []rule.Rule
	Get(id string) (rule.Rule, bool)
}

// Engine performs reverse inference over a rule registry.
type Engine struct {
	registry    Registry
	matcher     Matcher
	trust       TrustScorer
	tagger      SymbolicTagger
	maxDepth    int
	branchWidth int
	maxChains   int
	minScore    float64
	residualEps float64
	log         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatcher replaces the default fuzzy matcher.
func WithMatcher(m Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithTrustScorer replaces the default uniform trust.
func WithTrustScorer(t TrustScorer) Option {
	return func(e *Engine) { e.trust = t }
}

// WithTagger replaces the default static tagger.
func WithTagger(t SymbolicTagger) Option {
	return func(e *Engine) { e.tagger = t }
}

// WithMaxDepth bounds chain length.
func WithMaxDepth(d int) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxDepth = d
		}
	}
}

// WithBranchWidth bounds candidates kept per search step.
func WithBranchWidth(w int) Option {
	return func(e *Engine) {
		if w > 0 {
			e.branchWidth = w
		}
	}
}

// WithMaxChains bounds the number of chains returned.
func WithMaxChains(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxChains = n
		}
	}
}

// WithMinScore sets the score below which a chain does not count as an
// explanation and the result reports a gap.
func WithMinScore(s float64) Option {
	return func(e *Engine) { e.minScore = s }
}

// WithResidualEpsilon sets the residual magnitude treated as fully
// explained.
func WithResidualEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.residualEps = eps
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a reverse inference engine over a registry.
func NewEngine(reg Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		matcher:     FuzzyMatcher{Tolerance: 0.05},
		trust:       UniformTrust{},
		tagger:      StaticTagger{},
		maxDepth:    defaultMaxDepth,
		branchWidth: defaultBranchWidth,
		maxChains:   defaultMaxChains,
		minScore:    defaultMinScore,
		residualEps: defaultResidualEpsilon,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// workItem is one partial chain on the search worklist.
type workItem struct {
	ruleIDs  []string
	sources  []string
	residual world.Delta
	score    float64
	depth    int
}

// Infer searches for rule chains explaining how prior turned into the
// observed delta. An empty delta yields an empty, gapless result.
//
// The context bounds the search; cancellation returns the chains found
// so far with ctx.Err().
func (e *Engine) Infer(ctx context.Context, delta world.Delta, maxDepth int) (Result, error) {
	if maxDepth <= 0 || maxDepth > e.maxDepth {
		maxDepth = e.maxDepth
	}
	var res Result
	if len(delta) == 0 || delta.Magnitude() <= e.residualEps {
		return res, nil
	}

	candidates, warnings := e.candidates()
	res.Warnings = warnings
	if len(candidates) == 0 {
		res.Gap = true
		res.Suggestions = rule.DeltaFingerprint(delta)
		return res, nil
	}

	var complete []Chain
	worklist := []workItem{{residual: delta.Clone(), score: 0}}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			res.Chains = e.finalize(complete)
			return res, err
		}
		item := worklist[0]
		worklist = worklist[1:]

		if item.depth >= maxDepth {
			if len(item.ruleIDs) > 0 {
				complete = append(complete, e.makeChain(item))
			}
			continue
		}

		expanded := false
		for _, c := range e.topMatches(candidates, item) {
			next := consume(item.residual, c.Fingerprint)
			// Diminishing returns: extending the chain must actually
			// shrink the residual, or the search loops on no-ops.
			if next.Magnitude() >= item.residual.Magnitude()-e.residualEps {
				continue
			}
			expanded = true
			child := workItem{
				ruleIDs:  append(append([]string(nil), item.ruleIDs...), c.RuleID),
				sources:  append(append([]string(nil), item.sources...), c.Source),
				residual: next,
				score:    chainScore(item, c, delta),
				depth:    item.depth + 1,
			}
			if next.Magnitude() <= e.residualEps {
				complete = append(complete, e.makeChain(child))
				continue
			}
			worklist = append(worklist, child)
		}
		if !expanded && len(item.ruleIDs) > 0 {
			complete = append(complete, e.makeChain(item))
		}
	}

	res.Chains = e.finalize(complete)
	// Ranking is trust-first, so the top chain is not necessarily the
	// best explainer. Gap detection wants coverage, not provenance.
	best := 0.0
	bestIdx := -1
	for i, c := range res.Chains {
		if c.Score > best {
			best = c.Score
			bestIdx = i
		}
	}
	if best < e.minScore {
		res.Gap = true
		residual := delta
		if bestIdx >= 0 {
			residual = residualDelta(delta, res.Chains[bestIdx], e.registry)
		}
		res.Suggestions = rule.DeltaFingerprint(residual)
		e.log.Info("inference gap",
			"delta_paths", len(delta),
			"best_score", best,
			"chains", len(res.Chains))
	}
	return res, nil
}

// candidates collects enabled, non-inert rules with their fingerprints.
func (e *Engine) candidates() ([]Candidate, []string) {
	var out []Candidate
	var warnings []string
	for _, r := range e.registry.ActiveRules() {
		if r.Inert() {
			warnings = append(warnings, "rule "+r.ID+" excluded: no effects")
			continue
		}
		out = append(out, Candidate{
			RuleID:      r.ID,
			Source:      r.Source,
			Fingerprint: rule.ComputeFingerprint(r),
		})
	}
	return out, warnings
}

// topMatches scores every candidate against the item's residual and
// returns the best branchWidth of them. Ties break by rule ID so the
// search is deterministic.
func (e *Engine) topMatches(candidates []Candidate, item workItem) []Candidate {
	type scored struct {
		c     Candidate
		score float64
	}
	var hits []scored
	for _, c := range candidates {
		if s := e.matcher.Score(c, item.residual); s > 0 {
			hits = append(hits, scored{c, s})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].c.RuleID < hits[j].c.RuleID
	})
	if len(hits) > e.branchWidth {
		hits = hits[:e.branchWidth]
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

func (e *Engine) makeChain(item workItem) Chain {
	tags, conf := e.tagger.Tags(item.ruleIDs)
	return Chain{
		RuleIDs:            item.ruleIDs,
		Tags:               tags,
		Trust:              e.trust.Score(item.sources),
		SymbolicConfidence: conf,
		Score:              item.score,
		Residual:           item.residual.Magnitude(),
	}
}

// finalize dedupes, ranks, and truncates chains. Ranking prefers trust,
// then shorter chains, then lexicographic rule IDs for determinism.
func (e *Engine) finalize(chains []Chain) []Chain {
	seen := make(map[string]bool)
	var out []Chain
	for _, c := range chains {
		key := chainKey(c.RuleIDs)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trust != out[j].Trust {
			return out[i].Trust > out[j].Trust
		}
		if len(out[i].RuleIDs) != len(out[j].RuleIDs) {
			return len(out[i].RuleIDs) < len(out[j].RuleIDs)
		}
		return chainKey(out[i].RuleIDs) < chainKey(out[j].RuleIDs)
	})
	if len(out) > e.maxChains {
		out = out[:e.maxChains]
	}
	return out
}

func chainKey(ids []string) string {
	key := ""
	for _, id := range ids {
		key += id + "\x00"
	}
	return key
}

// chainScore blends the parent's score with the new match, weighted by
// how much of the delta's magnitude the chain has explained so far.
func chainScore(parent workItem, c Candidate, original world.Delta) float64 {
	total := original.Magnitude()
	if total == 0 {
		return 0
	}
	next := consume(parent.residual, c.Fingerprint)
	explained := (total - next.Magnitude()) / total
	if explained < 0 {
		return 0
	}
	if explained > 1 {
		return 1
	}
	return explained
}

// consume subtracts a fingerprint's expected contribution from a
// residual delta. Fully explained paths disappear; partially explained
// ones keep the remainder.
func consume(residual world.Delta, fp rule.Fingerprint) world.Delta {
	fp = alignFingerprint(fp, residual)
	out := make(world.Delta, len(residual))
	for path, ch := range residual {
		exp, ok := fp[path]
		if !ok {
			out[path] = ch
			continue
		}
		remaining := remainingChange(ch, exp)
		if remaining != nil {
			out[path] = *remaining
		}
	}
	return out
}

func remainingChange(ch world.Change, exp rule.Expected) *world.Change {
	diff := ch.Diff()
	switch exp.Class {
	case rule.ClassSet:
		// A set explains the path's final value outright.
		if math.Abs(ch.New-exp.Magnitude) <= 1e-9 {
			return nil
		}
		return &world.Change{Old: exp.Magnitude, New: ch.New}
	case rule.ClassIncrease:
		if diff <= 0 {
			return &ch
		}
		rest := diff - exp.Magnitude
		if math.Abs(rest) <= 1e-9 {
			return nil
		}
		return &world.Change{Old: ch.Old, New: ch.Old + rest}
	case rule.ClassDecrease:
		if diff >= 0 {
			return &ch
		}
		rest := diff + exp.Magnitude
		if math.Abs(rest) <= 1e-9 {
			return nil
		}
		return &world.Change{Old: ch.Old, New: ch.Old + rest}
	default:
		return &ch
	}
}

// residualDelta recomputes what the best chain leaves unexplained, for
// suggestion fingerprints.
func residualDelta(delta world.Delta, best Chain, reg Registry) world.Delta {
	residual := delta.Clone()
	for _, id := range best.RuleIDs {
		r, ok := reg.Get(id)
		if !ok {
			continue
		}
		residual = consume(residual, rule.ComputeFingerprint(r))
	}
	if len(residual) == 0 {
		return delta
	}
	return residual
}
