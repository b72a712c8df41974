package storage

import (
	"context"
	"testing"

	"sdrprobe/internal/model"
)

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	queries := []model.QueryRecord{{Label: "1.00", Results: []model.MatchRecord{{Matcher: "knn", Label: "1.00"}}}}
	if err := store.SaveQueryResults(ctx, "run-1", queries); err != nil {
		t.Fatalf("save queries: %v", err)
	}
	queries[0].Results[0].Label = "mutated"

	got, _, err := store.GetQueryResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("get queries: %v", err)
	}
	if got[0].Results[0].Label != "1.00" {
		t.Fatalf("stored results alias caller slice: %+v", got)
	}
	got[0].Results[0].Label = "mutated"
	again, _, _ := store.GetQueryResults(ctx, "run-1")
	if again[0].Results[0].Label != "1.00" {
		t.Fatalf("returned results alias stored slice: %+v", again)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), sampleRun("r", "t")); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
