package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vigil-triage/config"
	"vigil-triage/core/risk"
	"vigil-triage/core/utils"
)

func setupStores(t *testing.T) (ReportsStore, PredictionsStore, *Feed) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{DBPath: filepath.Join(dir, "predictions.db")}
	logger := utils.NewLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(context.Background(), db, "sqlite", logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	feed := NewFeed()
	return NewReportsStore(db), NewPredictionsStore(db, feed), feed
}

func seedReport(t *testing.T, reports ReportsStore, id string) *Report {
	t.Helper()
	rep := &Report{
		ID:           id,
		Description:  "a window was smashed",
		Location:     "commercial",
		SubLocation:  "storefront",
		CategoryType: "vandalism",
		OccurredAt:   time.Date(2026, time.May, 1, 21, 0, 0, 0, time.UTC),
	}
	if err := reports.CreateReport(context.Background(), rep); err != nil {
		t.Fatalf("create report: %v", err)
	}
	return rep
}

func testRecord(reportID string, gen uint64, tier risk.Tier) *PredictionRecord {
	return &PredictionRecord{
		ReportID:      reportID,
		Generation:    gen,
		Tier:          tier,
		Confidence:    0.8,
		Probabilities: risk.Distribution{Low: 0.1, Medium: 0.1, High: 0.8},
		Reasoning:     "test reasoning",
		OriginatedAt:  time.Now().UTC(),
	}
}

func drain(sub *FeedSubscription) []Snapshot {
	var out []Snapshot
	for {
		select {
		case snap := <-sub.C:
			out = append(out, snap)
		default:
			return out
		}
	}
}

func TestTwoPhaseWriteEmitsFieldlessThenPendingThenResolved(t *testing.T) {
	reports, predictions, feed := setupStores(t)
	rep := seedReport(t, reports, "r1")
	sub := feed.Subscribe(16)
	defer sub.Close()
	ctx := context.Background()

	// Phase 1: the report touch lands before any prediction row exists.
	if err := predictions.MarkRequested(ctx, rep.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark requested: %v", err)
	}
	events := drain(sub)
	if len(events) != 1 || events[0].Prediction != nil {
		t.Fatalf("phase 1 events = %+v, want one fieldless snapshot", events)
	}

	// Phase 2: the prediction row lands with no server time.
	rec := testRecord(rep.ID, 1, risk.TierHigh)
	if err := predictions.UpsertPrediction(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	events = drain(sub)
	if len(events) != 1 || events[0].Prediction == nil {
		t.Fatalf("phase 2 events = %+v", events)
	}
	if events[0].Prediction.ServerTime != nil {
		t.Fatal("server time resolved before the resolver pass")
	}

	// Phase 3: resolution stamps the server time and emits again.
	n, err := predictions.ResolvePending(ctx, time.Now().UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n != 1 {
		t.Fatalf("resolved %d rows, want 1", n)
	}
	events = drain(sub)
	if len(events) != 1 || events[0].Prediction == nil || events[0].Prediction.ServerTime == nil {
		t.Fatalf("phase 3 events = %+v", events)
	}
}

func TestUpsertDemotesOlderGenerations(t *testing.T) {
	reports, predictions, _ := setupStores(t)
	rep := seedReport(t, reports, "r1")
	ctx := context.Background()

	if err := predictions.UpsertPrediction(ctx, testRecord(rep.ID, 1, risk.TierMedium)); err != nil {
		t.Fatalf("upsert gen 1: %v", err)
	}
	if err := predictions.UpsertPrediction(ctx, testRecord(rep.ID, 2, risk.TierLow)); err != nil {
		t.Fatalf("upsert gen 2: %v", err)
	}
	cur, err := predictions.GetCurrent(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur.Generation != 2 || cur.Tier != risk.TierLow {
		t.Fatalf("current = %+v", cur)
	}
	count, err := predictions.CountCurrent(ctx, PredictionFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("current count = %d", count)
	}
}

func TestLateWriteFromSupersededGenerationIsNotCurrent(t *testing.T) {
	reports, predictions, _ := setupStores(t)
	rep := seedReport(t, reports, "r1")
	ctx := context.Background()

	if err := predictions.UpsertPrediction(ctx, testRecord(rep.ID, 3, risk.TierHigh)); err != nil {
		t.Fatalf("upsert gen 3: %v", err)
	}
	if err := predictions.UpsertPrediction(ctx, testRecord(rep.ID, 1, risk.TierLow)); err != nil {
		t.Fatalf("late upsert gen 1: %v", err)
	}
	cur, err := predictions.GetCurrent(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur.Generation != 3 || cur.Tier != risk.TierHigh {
		t.Fatalf("current = %+v", cur)
	}
}

func TestImmuneTierNotLoweredByRetriedWrite(t *testing.T) {
	reports, predictions, _ := setupStores(t)
	rep := seedReport(t, reports, "r1")
	ctx := context.Background()

	immune := testRecord(rep.ID, 1, risk.TierHigh)
	immune.OverrideImmune = true
	immune.Confidence = 0.95
	if err := predictions.UpsertPrediction(ctx, immune); err != nil {
		t.Fatalf("upsert immune: %v", err)
	}

	retry := testRecord(rep.ID, 1, risk.TierLow)
	if err := predictions.UpsertPrediction(ctx, retry); err != nil {
		t.Fatalf("retried upsert: %v", err)
	}
	cur, err := predictions.GetCurrent(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur.Tier != risk.TierHigh || !cur.OverrideImmune {
		t.Fatalf("current = %+v", cur)
	}
	if cur.Confidence != 0.95 {
		t.Fatalf("confidence = %f", cur.Confidence)
	}
}

func TestListCurrentFiltersAndOrders(t *testing.T) {
	reports, predictions, _ := setupStores(t)
	ctx := context.Background()
	for i, tier := range []risk.Tier{risk.TierLow, risk.TierHigh, risk.TierHigh} {
		id := []string{"r1", "r2", "r3"}[i]
		seedReport(t, reports, id)
		rec := testRecord(id, 1, tier)
		rec.OriginatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := predictions.UpsertPrediction(ctx, rec); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	high := risk.TierHigh
	items, err := predictions.ListCurrent(ctx, PredictionFilter{Tier: &high, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("filtered count = %d", len(items))
	}
	if items[0].ReportID != "r3" || items[1].ReportID != "r2" {
		t.Fatalf("order = %s, %s", items[0].ReportID, items[1].ReportID)
	}
}

func TestPruneKeepsCurrentGeneration(t *testing.T) {
	reports, predictions, _ := setupStores(t)
	rep := seedReport(t, reports, "r1")
	ctx := context.Background()

	old := testRecord(rep.ID, 1, risk.TierMedium)
	old.OriginatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := predictions.UpsertPrediction(ctx, old); err != nil {
		t.Fatalf("upsert gen 1: %v", err)
	}
	current := testRecord(rep.ID, 2, risk.TierHigh)
	current.OriginatedAt = time.Now().UTC().Add(-47 * time.Hour)
	if err := predictions.UpsertPrediction(ctx, current); err != nil {
		t.Fatalf("upsert gen 2: %v", err)
	}

	pruned, err := predictions.PruneSuperseded(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	cur, err := predictions.GetCurrent(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if cur == nil || cur.Generation != 2 {
		t.Fatalf("current after prune = %+v", cur)
	}
}

func TestMarkRequestedUnknownReport(t *testing.T) {
	_, predictions, _ := setupStores(t)
	err := predictions.MarkRequested(context.Background(), "missing", time.Now().UTC())
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
