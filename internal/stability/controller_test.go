package stability

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"sdrprobe/internal/sdr"
)

func TestControllerStopsAfterThresholdStableCycles(t *testing.T) {
	c := NewController(Config{StableThreshold: 5, MaxCycles: 1000})

	for cycle := 0; cycle < 3; cycle++ {
		if c.EndCycle(cycle) {
			t.Fatalf("cycle %d: should not stop while unstable", cycle)
		}
	}
	c.OnStabilityChanged(true, 5, 15)
	if c.State() != Stable {
		t.Fatalf("expected stable state, got %s", c.State())
	}

	stopped := -1
	for cycle := 3; cycle < 20; cycle++ {
		if c.EndCycle(cycle) {
			stopped = cycle
			break
		}
	}
	// counter must exceed 5, so six stable cycles are required.
	if stopped != 8 {
		t.Fatalf("expected stop at cycle 8, got %d", stopped)
	}
	out := c.Outcome()
	if !out.Converged || out.Reason != ReasonStable || out.Cycles != 9 || out.StableCycles != 6 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !c.EndCycle(9) {
		t.Fatal("done controller should keep reporting completion")
	}
}

func TestControllerBudgetExhaustion(t *testing.T) {
	c := NewController(Config{StableThreshold: 5, MaxCycles: 10})
	cycles := 0
	for cycle := 0; cycle < 1000; cycle++ {
		cycles++
		if c.EndCycle(cycle) {
			break
		}
	}
	if cycles != 10 {
		t.Fatalf("expected 10 cycles, got %d", cycles)
	}
	out := c.Outcome()
	if out.Converged || out.Reason != ReasonBudgetExhausted {
		t.Fatalf("expected non-converged budget outcome, got %+v", out)
	}
}

func TestControllerRegressionResetsCounterAndWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewController(Config{StableThreshold: 2, MaxCycles: 100, Logger: logger})

	c.OnStabilityChanged(true, 2, 4)
	c.EndCycle(0)
	c.EndCycle(1)
	c.OnStabilityChanged(false, 2, 6)
	if c.EndCycle(2) {
		t.Fatal("should not stop after regression")
	}
	out := c.Outcome()
	if out.StableCycles != 0 || out.Regressions != 1 || out.Transitions != 2 {
		t.Fatalf("unexpected outcome after regression: %+v", out)
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "coder left stable state") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}

	// duplicate signals are not transitions
	c.OnStabilityChanged(false, 2, 7)
	if got := c.Outcome().Transitions; got != 2 {
		t.Fatalf("duplicate signal counted as transition: %d", got)
	}
}

func TestControllerObserveTracksDrift(t *testing.T) {
	c := NewController(Config{})
	if c.Config().StableThreshold != DefaultStableThreshold || c.Config().MaxCycles != DefaultMaxCycles {
		t.Fatalf("unexpected defaults: %+v", c.Config())
	}

	first := c.Observe(0, "1.00", sdr.MustSparseCode(1, 2, 3, 4))
	if !first.First || first.Similarity != 0 || first.Active != 4 {
		t.Fatalf("unexpected first observation: %+v", first)
	}
	second := c.Observe(1, "1.00", sdr.MustSparseCode(1, 2, 3, 5))
	if second.First || math.Abs(second.Similarity-0.75) > 1e-12 {
		t.Fatalf("unexpected drift observation: %+v", second)
	}
	c.Observe(1, "0.00", sdr.MustSparseCode(9))

	records := c.Records()
	if len(records) != 2 || records[0].Key != "0.00" || records[1].Key != "1.00" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[1].Similarity != second.Similarity || !records[1].Code.Equal(sdr.MustSparseCode(1, 2, 3, 5)) {
		t.Fatalf("record not updated: %+v", records[1])
	}

	c.Reset()
	if len(c.Records()) != 0 || c.State() != Unstable || c.Done() {
		t.Fatal("reset did not clear controller state")
	}
}
