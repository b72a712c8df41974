package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBoltStoreContract(t *testing.T) {
	store := NewBoltStore(filepath.Join(t.TempDir(), "sdrprobe.bolt"))
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sdrprobe.bolt")

	first := NewBoltStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveRun(ctx, sampleRun("run-1", "2026-03-01T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewBoltStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	run, ok, err := second.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run after reopen: ok=%v err=%v", ok, err)
	}
	if run.Training.StableCycles != 6 {
		t.Fatalf("unexpected run after reopen: %+v", run)
	}
}

func TestBoltStoreRequiresPathAndInit(t *testing.T) {
	if err := NewBoltStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
	if _, err := NewBoltStore("x").ListRuns(context.Background()); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
