package rule

import (
	"fmt"

	"github.com/retrograde-sim/retrograde/internal/world"
)

// Class categorizes the direction of an expected effect.
type Class int

const (
	// ClassSet means the effect overwrites the target to Magnitude.
	ClassSet Class = iota

	// ClassIncrease means the effect raises the target by Magnitude.
	ClassIncrease

	// ClassDecrease means the effect lowers the target by Magnitude.
	ClassDecrease
)

// String returns the wire name of the class.
func (c Class) String() string {
	switch c {
	case ClassSet:
		return "set"
	case ClassIncrease:
		return "increase"
	case ClassDecrease:
		return "decrease"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Expected describes the change a single effect would produce at a path.
// Magnitude is always non-negative for increase/decrease; for set it is
// the absolute target value.
type Expected struct {
	Class     Class   `json:"class"`
	Magnitude float64 `json:"magnitude"`
}

// Fingerprint is the expected effect pattern of a rule: the set of
// target paths its effects would touch with their sign/magnitude class.
// Keys are fully qualified path strings.
type Fingerprint map[string]Expected

// ComputeFingerprint derives a rule's fingerprint from its effect list.
// Multiple effects on the same path collapse: adjustments accumulate,
// and a set overrides everything before it (later effects observe
// earlier ones, so the last set wins and subsequent adjustments shift
// its value).
func ComputeFingerprint(r Rule) Fingerprint {
	// Track the net outcome per path as (isSet, base, shift).
	type net struct {
		isSet bool
		base  float64 // set value, when isSet
		shift float64 // accumulated adjustment
	}
	nets := make(map[string]*net)
	order := make([]string, 0, len(r.Effects))

	for _, e := range r.Effects {
		key := e.Target.String()
		n, ok := nets[key]
		if !ok {
			n = &net{}
			nets[key] = n
			order = append(order, key)
		}
		switch e.Action {
		case ActionSetVariable:
			n.isSet = true
			n.base = e.Value
			n.shift = 0
		case ActionAdjustVariable:
			n.shift += e.Value
		}
	}

	fp := make(Fingerprint, len(nets))
	for _, key := range order {
		n := nets[key]
		switch {
		case n.isSet:
			fp[key] = Expected{Class: ClassSet, Magnitude: n.base + n.shift}
		case n.shift >= 0:
			fp[key] = Expected{Class: ClassIncrease, Magnitude: n.shift}
		default:
			fp[key] = Expected{Class: ClassDecrease, Magnitude: -n.shift}
		}
	}
	return fp
}

// DeltaFingerprint converts an observed delta into fingerprint form.
// Used for suggested fingerprints when no rule chain explains a delta.
func DeltaFingerprint(d world.Delta) Fingerprint {
	fp := make(Fingerprint, len(d))
	for key, c := range d {
		diff := c.New - c.Old
		switch {
		case diff >= 0:
			fp[key] = Expected{Class: ClassIncrease, Magnitude: diff}
		default:
			fp[key] = Expected{Class: ClassDecrease, Magnitude: -diff}
		}
	}
	return fp
}

// Hash computes the content-addressed identity of a fingerprint.
func (fp Fingerprint) Hash() (string, error) {
	obj := make(map[string]any, len(fp))
	for k, e := range fp {
		obj[k] = map[string]any{
			"class":     e.Class.String(),
			"magnitude": e.Magnitude,
		}
	}
	canonical, err := world.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint hash: %w", err)
	}
	return world.HashWithDomain(world.DomainFingerprint, canonical), nil
}
