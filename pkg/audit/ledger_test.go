package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

func openTestLedger(t *testing.T, maxEntries int) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path, maxEntries, logx.NewLogger("error", "test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedgerRecordAndRecentDecisions(t *testing.T) {
	l := openTestLedger(t, 0)

	target := 25.0
	for i := 0; i < 3; i++ {
		d := PowerDecision{
			Timestamp:   time.Now(),
			BatterySet:  []string{"b1", "b2"},
			SourceID:    "ems",
			Priority:    2,
			TargetPower: &target,
			Sent:        true,
		}
		if err := l.RecordDecision(d); err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}

	got, err := l.RecentDecisions(10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(got))
	}
	if got[0].SourceID != "ems" || *got[0].TargetPower != 25.0 {
		t.Fatalf("unexpected decision: %+v", got[0])
	}
}

func TestLedgerTrimsOldestOnOverflow(t *testing.T) {
	l := openTestLedger(t, 2)

	for i := 0; i < 5; i++ {
		err := l.RecordResamplingFailure(ResamplingFailure{
			Timestamp: time.Now(),
			Source:    "meter-A",
			Cause:     "source stopped",
		})
		if err != nil {
			t.Fatalf("RecordResamplingFailure: %v", err)
		}
	}

	got, err := l.RecentResamplingFailures(10)
	if err != nil {
		t.Fatalf("RecentResamplingFailures: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected trimming to 2 entries, got %d", len(got))
	}
}

func TestLedgerRecentLimitsToNewest(t *testing.T) {
	l := openTestLedger(t, 0)

	for i := 0; i < 5; i++ {
		target := float64(i)
		err := l.RecordDecision(PowerDecision{
			Timestamp:   time.Now(),
			BatterySet:  []string{"b1"},
			SourceID:    "ems",
			TargetPower: &target,
		})
		if err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}

	got, err := l.RecentDecisions(2)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if *got[len(got)-1].TargetPower != 4.0 {
		t.Fatalf("expected newest entry last, got %+v", got)
	}
}
