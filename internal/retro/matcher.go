package retro

import (
	"math"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Candidate pairs a rule with its precomputed effect fingerprint.
type Candidate struct {
	RuleID      string
	Source      string
	Fingerprint rule.Fingerprint
}

// Matcher scores how well a candidate's fingerprint explains a delta.
// Scores are in [0, 1]; zero means no explanatory power.
type Matcher interface {
	Score(c Candidate, d world.Delta) float64
	Name() string
}

// ExactMatcher demands exact class and magnitude agreement on every path
// the fingerprint touches. The score is the fraction of delta paths the
// fingerprint explains, so a rule touching half the delta scores 0.5.
type ExactMatcher struct{}

// Name implements Matcher.
func (ExactMatcher) Name() string { return "exact" }

// Score implements Matcher.
func (ExactMatcher) Score(c Candidate, d world.Delta) float64 {
	return scoreFingerprint(c.Fingerprint, d, 1e-9, false)
}

// FuzzyMatcher accepts magnitude mismatches up to Tolerance (absolute)
// at full credit and grants partial credit beyond it, so a rule that
// explains part of a path's change still ranks. Class agreement is
// still required: a rule that decreases a path never explains an
// observed increase, however small.
type FuzzyMatcher struct {
	Tolerance float64
}

// Name implements Matcher.
func (m FuzzyMatcher) Name() string { return "fuzzy" }

// Score implements Matcher.
func (m FuzzyMatcher) Score(c Candidate, d world.Delta) float64 {
	tol := m.Tolerance
	if tol <= 0 {
		tol = 1e-9
	}
	return scoreFingerprint(c.Fingerprint, d, tol, true)
}

// alignFingerprint rewrites fingerprint keys to the delta keys they
// resolve to. Observed deltas always carry fully qualified paths, but a
// rule may legally target a bare path; at apply time that lands in
// whichever namespace the state resolved, so a bare key matches
// overlays.<name> first, then variables.<name>.
func alignFingerprint(fp rule.Fingerprint, d world.Delta) rule.Fingerprint {
	aligned := make(rule.Fingerprint, len(fp))
	for key, exp := range fp {
		p, err := world.ParsePath(key)
		if err != nil {
			aligned[key] = exp
			continue
		}
		resolved := key
		for _, variant := range p.Variants() {
			if _, ok := d[variant]; ok {
				resolved = variant
				break
			}
		}
		aligned[resolved] = exp
	}
	return aligned
}

func scoreFingerprint(fp rule.Fingerprint, d world.Delta, tol float64, partial bool) float64 {
	if len(fp) == 0 || len(d) == 0 {
		return 0
	}
	fp = alignFingerprint(fp, d)
	credit := 0.0
	for path, exp := range fp {
		change, ok := d[path]
		if !ok {
			// The rule would have touched a path the delta does not
			// contain. Clamping can absorb effects, so this is a miss,
			// not a contradiction.
			continue
		}
		if !classAgrees(exp.Class, change) {
			return 0
		}
		obs := observedMagnitude(exp.Class, change)
		switch {
		case math.Abs(obs-exp.Magnitude) <= tol:
			credit++
		case partial && obs > 0 && exp.Magnitude > 0:
			credit += math.Min(obs, exp.Magnitude) / math.Max(obs, exp.Magnitude)
		}
	}
	return credit / float64(len(d))
}

func classAgrees(class rule.Class, ch world.Change) bool {
	diff := ch.Diff()
	switch class {
	case rule.ClassIncrease:
		return diff > 0
	case rule.ClassDecrease:
		return diff < 0
	case rule.ClassSet:
		return true
	default:
		return false
	}
}

func observedMagnitude(class rule.Class, ch world.Change) float64 {
	if class == rule.ClassSet {
		return math.Abs(ch.New)
	}
	return math.Abs(ch.Diff())
}

// TrustScorer rates the provenance of a rule chain in [0, 1]. The input
// is the chain's rule sources in firing order.
type TrustScorer interface {
	Score(sources []string) float64
}

// UniformTrust treats every source as fully trusted. The default.
type UniformTrust struct{}

// Score implements TrustScorer.
func (UniformTrust) Score(sources []string) float64 { return 1.0 }

// SourceTrust maps provenance tags to trust weights; a chain's trust is
// the product of its members' weights. Unknown sources get Default.
type SourceTrust struct {
	Weights map[string]float64
	Default float64
}

// Score implements TrustScorer.
func (t SourceTrust) Score(sources []string) float64 {
	score := 1.0
	for _, src := range sources {
		w, ok := t.Weights[src]
		if !ok {
			w = t.Default
		}
		score *= w
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SymbolicTagger annotates a rule chain with symbolic labels and a
// confidence for the labeling. Tags feed narrative output; they never
// affect chain ranking.
type SymbolicTagger interface {
	Tags(ruleIDs []string) ([]string, float64)
}

// StaticTagger maps rule IDs to fixed tags. The default with no entries
// tags nothing at full confidence.
type StaticTagger struct {
	ByRule map[string][]string
}

// Tags implements SymbolicTagger.
func (t StaticTagger) Tags(ruleIDs []string) ([]string, float64) {
	var tags []string
	seen := make(map[string]bool)
	for _, id := range ruleIDs {
		for _, tag := range t.ByRule[id] {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags, 1.0
}

// TrustWeightedMatcher wraps another matcher and scales its score by the
// trust of the candidate's source. Used when ranking should prefer
// hand-authored rules over generated ones.
type TrustWeightedMatcher struct {
	Inner  Matcher
	Scorer TrustScorer
}

// Name implements Matcher.
func (m TrustWeightedMatcher) Name() string { return m.Inner.Name() + "+trust" }

// Score implements Matcher.
func (m TrustWeightedMatcher) Score(c Candidate, d world.Delta) float64 {
	base := m.Inner.Score(c, d)
	if base == 0 {
		return 0
	}
	return base * m.Scorer.Score([]string{c.Source})
}
