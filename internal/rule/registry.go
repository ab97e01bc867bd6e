package rule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/retrograde-sim/retrograde/internal/world"
)

// Registry is the in-memory rule catalog.
//
// Load replaces the rule set wholesale under a write lock; readers take
// immutable snapshots. Load must not run concurrently with an in-flight
// simulation's reads — callers snapshot ActiveRules at run start, and
// the Version counter lets them detect a swap.
type Registry struct {
	mu      sync.RWMutex
	rules   map[string]Rule
	active  []Rule // enabled rules, (priority desc, id asc)
	version int64
}

// NewRegistry creates an empty registry at version 0.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Load validates and installs a rule set, replacing any previous one.
//
// Rejected wholesale (nothing installed) on the first duplicate ID or
// malformed rule. Path validation here is syntax-only; existence is
// checked at evaluation time.
func (r *Registry) Load(rules []Rule) error {
	byID := make(map[string]Rule, len(rules))
	for _, rl := range rules {
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		if _, dup := byID[rl.ID]; dup {
			return &world.ValidationError{
				Op:      "registry.load",
				Field:   "id",
				Message: fmt.Sprintf("duplicate rule id %q", rl.ID),
			}
		}
		byID[rl.ID] = rl
	}

	active := make([]Rule, 0, len(rules))
	for _, rl := range byID {
		if rl.Enabled {
			active = append(active, rl)
		}
	}
	sortByPriority(active)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = byID
	r.active = active
	r.version++
	return nil
}

// ActiveRules returns an immutable snapshot of enabled rules sorted by
// (priority descending, id ascending). The returned slice is a copy;
// callers may hold it for the duration of a run.
func (r *Registry) ActiveRules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]Rule, len(r.active))
	copy(snapshot, r.active)
	return snapshot
}

// Get looks up a rule by ID, enabled or not. Used by the reverse engine
// for fingerprint lookups.
func (r *Registry) Get(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.rules[id]
	return rl, ok
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Version returns the load generation. It increments on every successful
// Load, letting long-lived holders detect that their snapshot is stale.
func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func sortByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}
