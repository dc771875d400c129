package reconcile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"vigil-triage/core/risk"
	"vigil-triage/core/store"
)

func rec(reportID string, gen uint64, tier risk.Tier, originated time.Time) *store.PredictionRecord {
	return &store.PredictionRecord{
		ReportID:      reportID,
		Generation:    gen,
		Tier:          tier,
		Confidence:    0.8,
		Probabilities: risk.Distribution{Low: 0.1, Medium: 0.1, High: 0.8},
		Reasoning:     "test",
		Current:       true,
		OriginatedAt:  originated,
	}
}

func resolved(r *store.PredictionRecord, at time.Time) *store.PredictionRecord {
	cp := *r
	cp.ServerTime = &at
	return &cp
}

var ignoreUpdatedAt = cmpopts.IgnoreFields(ViewModel{}, "UpdatedAt")

func TestAdoptWhenEmpty(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()

	if view := r.ApplySnapshot(store.Snapshot{ReportID: "a"}); view != nil {
		t.Fatalf("fieldless snapshot on empty view produced %+v", view)
	}

	snap := store.Snapshot{ReportID: "a", Prediction: rec("a", 1, risk.TierMedium, base)}
	view := r.ApplySnapshot(snap)
	if view == nil || view.Record == nil {
		t.Fatal("snapshot with fields not adopted")
	}
	if view.Provenance != ProvenancePendingLocal {
		t.Fatalf("provenance = %s, want pending-local while unresolved", view.Provenance)
	}
}

func TestFieldlessSnapshotNeverBlanksLocalRecord(t *testing.T) {
	r := NewReconciler()
	local := rec("a", 1, risk.TierHigh, time.Now().UTC())
	r.ApplyLocal(local)

	view := r.ApplySnapshot(store.Snapshot{ReportID: "a"})
	if view == nil || view.Record == nil {
		t.Fatal("local record blanked by fieldless snapshot")
	}
	if view.Record.Tier != risk.TierHigh {
		t.Fatalf("tier = %v after fieldless snapshot", view.Record.Tier)
	}
	if view.Provenance != ProvenancePendingLocal {
		t.Fatalf("provenance = %s", view.Provenance)
	}
}

func TestResolvedSnapshotConfirms(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	local := rec("a", 1, risk.TierHigh, base)
	r.ApplyLocal(local)

	serverTime := base.Add(300 * time.Millisecond)
	view := r.ApplySnapshot(store.Snapshot{ReportID: "a", Prediction: resolved(local, serverTime)})
	if view.Provenance != ProvenanceConfirmedRemote {
		t.Fatalf("provenance = %s, want confirmed-remote", view.Provenance)
	}
	if view.Record.ServerTime == nil || !view.Record.ServerTime.Equal(serverTime) {
		t.Fatalf("server time = %v", view.Record.ServerTime)
	}
}

func TestIdempotentMerge(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	snap := store.Snapshot{ReportID: "a", Prediction: resolved(rec("a", 1, risk.TierMedium, base), base)}

	first := r.ApplySnapshot(snap)
	second := r.ApplySnapshot(snap)
	if diff := cmp.Diff(first, second, ignoreUpdatedAt); diff != "" {
		t.Fatalf("second apply changed the view (-first +second):\n%s", diff)
	}
}

func TestHigherGenerationWins(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	r.ApplyLocal(rec("a", 2, risk.TierMedium, base.Add(time.Second)))

	// A late snapshot from the superseded first generation must not win.
	view := r.ApplySnapshot(store.Snapshot{ReportID: "a", Prediction: resolved(rec("a", 1, risk.TierHigh, base), base)})
	if view.Record.Generation != 2 {
		t.Fatalf("generation = %d, want 2", view.Record.Generation)
	}

	view = r.ApplySnapshot(store.Snapshot{ReportID: "a", Prediction: resolved(rec("a", 3, risk.TierLow, base.Add(2*time.Second)), base.Add(2*time.Second))})
	if view.Record.Generation != 3 || view.Record.Tier != risk.TierLow {
		t.Fatalf("record = %+v", view.Record)
	}
}

func TestMostRecentLocalWinsWithinGeneration(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	r.ApplyLocal(rec("a", 1, risk.TierMedium, base))
	view := r.ApplyLocal(rec("a", 1, risk.TierLow, base.Add(time.Second)))
	if view.Record.Tier != risk.TierLow {
		t.Fatalf("tier = %v, want most recent local", view.Record.Tier)
	}

	stale := r.ApplyLocal(rec("a", 1, risk.TierHigh, base.Add(-time.Second)))
	if stale.Record.Tier != risk.TierLow {
		t.Fatalf("older local record replaced newer one: %+v", stale.Record)
	}
}

func TestImmuneTierNeverLoweredSameGeneration(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	immune := rec("a", 1, risk.TierHigh, base)
	immune.OverrideImmune = true
	r.ApplyLocal(immune)

	lower := rec("a", 1, risk.TierLow, base.Add(time.Second))
	view := r.ApplySnapshot(store.Snapshot{ReportID: "a", Prediction: resolved(lower, base.Add(time.Second))})
	if view.Record.Tier != risk.TierHigh {
		t.Fatalf("immune tier lowered to %v", view.Record.Tier)
	}

	view = r.ApplyLocal(lower)
	if view.Record.Tier != risk.TierHigh {
		t.Fatalf("immune tier lowered locally to %v", view.Record.Tier)
	}
}

func TestMonotonicVisibility(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	r.ApplyLocal(rec("a", 1, risk.TierMedium, base))

	events := []store.Snapshot{
		{ReportID: "a"},
		{ReportID: "a", Prediction: rec("a", 1, risk.TierMedium, base)},
		{ReportID: "a"},
		{ReportID: "a", Prediction: resolved(rec("a", 1, risk.TierMedium, base), base.Add(time.Second))},
		{ReportID: "a"},
	}
	for i, snap := range events {
		view := r.ApplySnapshot(snap)
		if view == nil || view.Record == nil {
			t.Fatalf("event %d blanked the view", i)
		}
	}
}

func TestRecentOrderingAndOverflow(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c", "d"} {
		r.ApplyLocal(rec(id, 1, risk.TierMedium, base.Add(time.Duration(i)*time.Second)))
	}
	items, overflow := r.Recent(2)
	if len(items) != 2 || overflow != 2 {
		t.Fatalf("recent = %d items, overflow %d", len(items), overflow)
	}
	if items[0].ReportID != "d" || items[1].ReportID != "c" {
		t.Fatalf("order = %s, %s", items[0].ReportID, items[1].ReportID)
	}
}

func TestAllFiltersByTier(t *testing.T) {
	r := NewReconciler()
	base := time.Now().UTC()
	r.ApplyLocal(rec("a", 1, risk.TierHigh, base))
	r.ApplyLocal(rec("b", 1, risk.TierLow, base.Add(time.Second)))
	r.ApplyLocal(rec("c", 1, risk.TierHigh, base.Add(2*time.Second)))

	high := risk.TierHigh
	got := r.All(&high)
	if len(got) != 2 {
		t.Fatalf("filtered count = %d", len(got))
	}
	if got[0].ReportID != "c" || got[1].ReportID != "a" {
		t.Fatalf("order = %s, %s", got[0].ReportID, got[1].ReportID)
	}
}
