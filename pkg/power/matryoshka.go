package power

import (
	"sort"
	"sync"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

// Matryoshka holds the persistent per-battery-set proposal ledger and the
// last target computed for each set, keyed across calls so that later
// proposals only ever further constrain, never widen, what earlier higher
// priority tiers already decided.
type Matryoshka struct {
	mu sync.Mutex

	// proposals[batterySetKey][sourceID] = Proposal
	proposals  map[string]map[string]Proposal
	lastTarget map[string]*float64
	logger     *logx.Logger
}

// NewMatryoshka creates an empty ledger.
func NewMatryoshka(logger *logx.Logger) *Matryoshka {
	return &Matryoshka{
		proposals:  make(map[string]map[string]Proposal),
		lastTarget: make(map[string]*float64),
		logger:     logger,
	}
}

// CalculateTargetPower inserts or replaces proposal in the ledger, then
// recomputes the effective target for batteryIDs by walking every live
// proposal from highest to lowest priority. Returns nil when mustSend is
// false and the recomputed target is unchanged from the last call.
func (m *Matryoshka) CalculateTargetPower(batteryIDs []string, proposal Proposal, systemBounds PowerMetrics, mustSend bool) *float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := batterySetKey(batteryIDs)
	tierSet, ok := m.proposals[key]
	if !ok {
		tierSet = make(map[string]Proposal)
		m.proposals[key] = tierSet
	}
	tierSet[proposal.SourceID] = proposal

	running := m.startingInterval(systemBounds, m.lastTarget[key])

	var target *float64
	for _, tier := range orderedTiers(tierSet) {
		if intersected, ok := tier.Bounds.Intersect(running); ok {
			running = intersected
		} else {
			// Tier bounds don't overlap the running interval at all: rather
			// than ignoring the tier outright, collapse running to the
			// single point at whichever of its own edges sits nearest the
			// conflicting tier's bounds, per the oracle behavior in
			// original_source/tests/actor/_power_managing/test_matryoshka.py
			// (the calculate_target_power walk, not get_status's).
			running = collapseToNearestEdge(running, tier.Bounds)
		}
		if tier.PreferredPower != nil {
			clipped := running.Clip(*tier.PreferredPower)
			target = &clipped
		}
	}

	if target == nil {
		zero := running.Clip(0)
		target = &zero
	}

	prev := m.lastTarget[key]
	if !mustSend && prev != nil && *prev == *target {
		return nil
	}
	m.lastTarget[key] = target

	result := *target
	return &result
}

// GetStatus reports the most recently computed target for batteryIDs and
// the inclusion interval visible to a proposer at tierPriority: the system
// inclusion bounds narrowed by every live proposal strictly more
// authoritative than tierPriority.
func (m *Matryoshka) GetStatus(batteryIDs []string, tierPriority int, systemBounds PowerMetrics) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := batterySetKey(batteryIDs)
	running := systemBounds.InclusionBounds

	for _, tier := range orderedTiers(m.proposals[key]) {
		if tier.Priority <= tierPriority {
			break
		}
		if intersected, ok := tier.Bounds.Intersect(running); ok {
			running = intersected
		}
	}

	return Report{
		TargetPower:     m.lastTarget[key],
		InclusionBounds: running,
	}
}

// startingInterval computes the running interval handed to the highest
// tier: the system inclusion bounds minus the exclusion bounds. When the
// exclusion has non-zero width and actually splits the inclusion interval
// into two disjoint segments, the segment containing the previously chosen
// target is carried forward (the upper segment by default if no target has
// been chosen yet for this battery set).
func (m *Matryoshka) startingInterval(systemBounds PowerMetrics, lastTarget *float64) Bounds {
	lower, upper, split := splitAroundExclusion(systemBounds.InclusionBounds, systemBounds.ExclusionBounds)
	if !split {
		return systemBounds.InclusionBounds
	}

	if lastTarget != nil {
		if lower.Contains(*lastTarget) {
			return lower
		}
		if upper.Contains(*lastTarget) {
			return upper
		}
	}
	return upper
}

// splitAroundExclusion splits inclusion into the segment below and the
// segment above exclusion, when exclusion is a non-zero-width interval
// strictly inside inclusion. split is false when there is nothing to split
// (zero-width exclusion, or exclusion not fully contained).
func splitAroundExclusion(inclusion, exclusion Bounds) (lowerSeg, upperSeg Bounds, split bool) {
	if exclusion.Lower == nil || exclusion.Upper == nil {
		return Bounds{}, Bounds{}, false
	}
	if *exclusion.Lower >= *exclusion.Upper {
		return Bounds{}, Bounds{}, false
	}
	if inclusion.Lower != nil && *exclusion.Lower <= *inclusion.Lower {
		return Bounds{}, Bounds{}, false
	}
	if inclusion.Upper != nil && *exclusion.Upper >= *inclusion.Upper {
		return Bounds{}, Bounds{}, false
	}

	excLower, excUpper := *exclusion.Lower, *exclusion.Upper
	lowerSeg = Bounds{Lower: inclusion.Lower, Upper: &excLower}
	upperSeg = Bounds{Lower: &excUpper, Upper: inclusion.Upper}
	return lowerSeg, upperSeg, true
}

// collapseToNearestEdge handles a tier whose bounds don't intersect running
// at all: running is collapsed to a single point at whichever of its own
// edges is nearest tierBounds, so a later, less-conflicting tier (or the
// same tier's own preferred_power clip) still has a well-defined interval
// to work with instead of running staying untouched. Intersect only
// returns !ok when tierBounds sits entirely above or entirely below
// running, so exactly one of the two branches below applies.
func collapseToNearestEdge(running, tierBounds Bounds) Bounds {
	if tierBounds.Lower != nil && running.Upper != nil && *tierBounds.Lower > *running.Upper {
		edge := *running.Upper
		return Bounds{Lower: &edge, Upper: &edge}
	}
	if tierBounds.Upper != nil && running.Lower != nil && *tierBounds.Upper < *running.Lower {
		edge := *running.Lower
		return Bounds{Lower: &edge, Upper: &edge}
	}
	return running
}

// orderedTiers returns the ledger's proposals sorted by descending
// priority, breaking ties by source ID for deterministic, reorder-stable
// evaluation within the same tick.
func orderedTiers(tierSet map[string]Proposal) []Proposal {
	tiers := make([]Proposal, 0, len(tierSet))
	for _, p := range tierSet {
		tiers = append(tiers, p)
	}
	sort.Slice(tiers, func(i, j int) bool {
		if tiers[i].Priority != tiers[j].Priority {
			return tiers[i].Priority > tiers[j].Priority
		}
		return tiers[i].SourceID < tiers[j].SourceID
	})
	return tiers
}
