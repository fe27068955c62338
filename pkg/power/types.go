// Package power implements Matryoshka, the priority-layered power-proposal
// reconciliation algorithm: many sources each propose a preferred power and
// bounds for a shared set of batteries, and Matryoshka folds them into a
// single target respecting strict priority dominance.
package power

import (
	"sort"
	"strings"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/timeseries"
)

// Bounds is re-exported from pkg/timeseries rather than duplicated: power
// arbitration and resampling both reason about optional-ended intervals,
// but otherwise stay decoupled domains (no shared Sample/Quantity type).
type Bounds = timeseries.Bounds

// Proposal is one source's input to the arbitration for a battery set.
// Higher Priority is more authoritative.
type Proposal struct {
	BatteryIDs     []string
	SourceID       string
	PreferredPower *float64
	Bounds         Bounds
	Priority       int
}

// PowerMetrics is the system-wide envelope supplied on every Matryoshka
// call: the inclusion interval the whole arbitration must stay within, and
// an exclusion interval (possibly zero-width) carved out of it.
type PowerMetrics struct {
	Timestamp       time.Time
	InclusionBounds Bounds
	ExclusionBounds Bounds
}

// Report is Matryoshka's synchronous response to get_status.
type Report struct {
	TargetPower     *float64
	InclusionBounds Bounds
}

// batterySetKey canonicalizes a battery ID set into a stable map key,
// independent of the caller's ordering.
func batterySetKey(batteryIDs []string) string {
	sorted := append([]string(nil), batteryIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
