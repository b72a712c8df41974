package storage

import (
	"context"
	"testing"

	"sdrprobe/internal/model"
)

func sampleRun(id, created string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Config: model.ExperimentConfig{
			Inputs:   []float64{0, 1, 2},
			MaxVal:   2,
			Coder:    "identity",
			Matchers: []string{"knn", "htm"},
		},
		Training:  model.TrainingOutcome{Cycles: 7, StableCycles: 6, Converged: true, Reason: "stable"},
		Summaries: []model.MatcherSummary{{Matcher: "knn", Queries: 3, Found: 3, ExactMatches: 3}},
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run: ok=%v err=%v", ok, err)
	}

	if err := store.SaveRun(ctx, sampleRun("run-a", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatalf("save run a: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("run-b", "2026-01-02T00:00:00Z")); err != nil {
		t.Fatalf("save run b: %v", err)
	}
	run, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if run.Training.Cycles != 7 || len(run.Config.Inputs) != 3 || run.Summaries[0].Matcher != "knn" {
		t.Fatalf("unexpected run: %+v", run)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Fatalf("expected newest first, got %+v", runs)
	}

	history := []model.CycleDiagnostics{
		{Cycle: 0, MeanActive: 10},
		{Cycle: 1, Stable: true, StableCycles: 1, MeanSimilarity: 1, MinSimilarity: 1, MeanActive: 10},
	}
	if err := store.SaveTrainingHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	gotHistory, ok, err := store.GetTrainingHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if len(gotHistory) != 2 || !gotHistory[1].Stable || gotHistory[1].MeanSimilarity != 1 {
		t.Fatalf("unexpected history: %+v", gotHistory)
	}

	queries := []model.QueryRecord{{
		Order: 0, Input: 1, Label: "1.00", Active: 10,
		Results: []model.MatchRecord{{Matcher: "knn", Found: true, Label: "1.00", Predicted: 1, Similarity: 1}},
	}}
	if err := store.SaveQueryResults(ctx, "run-a", queries); err != nil {
		t.Fatalf("save queries: %v", err)
	}
	gotQueries, ok, err := store.GetQueryResults(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get queries: ok=%v err=%v", ok, err)
	}
	if len(gotQueries) != 1 || gotQueries[0].Results[0].Label != "1.00" {
		t.Fatalf("unexpected queries: %+v", gotQueries)
	}

	snapshot := model.PatternMemorySnapshot{
		VersionedRecord: CurrentVersion(),
		Matcher:         "htm",
		Labels:          []string{"1.00"},
		Votes:           []model.VoteEntry{{Index: 4, Label: "1.00", Count: 2}},
	}
	if err := store.SavePatternMemory(ctx, "run-a", snapshot); err != nil {
		t.Fatalf("save memory: %v", err)
	}
	gotSnapshot, ok, err := store.GetPatternMemory(ctx, "run-a", "htm")
	if err != nil || !ok {
		t.Fatalf("get memory: ok=%v err=%v", ok, err)
	}
	if len(gotSnapshot.Votes) != 1 || gotSnapshot.Votes[0].Count != 2 {
		t.Fatalf("unexpected snapshot: %+v", gotSnapshot)
	}
	if _, ok, err := store.GetPatternMemory(ctx, "run-a", "knn"); err != nil || ok {
		t.Fatalf("unexpected knn snapshot: ok=%v err=%v", ok, err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err = store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list after reset: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %d", len(runs))
	}
	if _, ok, _ := store.GetTrainingHistory(ctx, "run-a"); ok {
		t.Fatal("expected history cleared by reset")
	}
}
