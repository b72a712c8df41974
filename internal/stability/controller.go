// Package stability gates training of a sparse coder on the stability of its
// output.
package stability

import (
	"io"
	"log/slog"
	"sort"
	"sync"

	"sdrprobe/internal/sdr"
)

const (
	DefaultStableThreshold = 5
	DefaultMaxCycles       = 1000
)

type State int

const (
	Unstable State = iota
	Stable
)

func (s State) String() string {
	if s == Stable {
		return "stable"
	}
	return "unstable"
}

const (
	ReasonStable          = "stable"
	ReasonBudgetExhausted = "budget_exhausted"
)

type Config struct {
	StableThreshold int
	MaxCycles       int
	Logger          *slog.Logger
}

// Record is the latest code seen for one input key and its similarity to the
// code seen one cycle earlier.
type Record struct {
	Key        string
	Code       sdr.SparseCode
	Similarity float64
	Cycle      int
}

type Observation struct {
	Key        string
	Cycle      int
	Active     int
	Similarity float64
	First      bool
}

type Outcome struct {
	Cycles       int    `json:"cycles"`
	StableCycles int    `json:"stable_cycles"`
	Converged    bool   `json:"converged"`
	Reason       string `json:"reason"`
	Transitions  int    `json:"transitions"`
	Regressions  int    `json:"regressions"`
}

// Controller tracks per-key drift and counts consecutive cycles the coder
// reported as stable. Training is complete once that count exceeds
// StableThreshold or MaxCycles cycles have run.
type Controller struct {
	cfg Config
	log *slog.Logger

	mu           sync.Mutex
	records      map[string]*Record
	state        State
	stableCycles int
	cycles       int
	transitions  int
	regressions  int
	done         bool
	reason       string
}

func NewController(cfg Config) *Controller {
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = DefaultStableThreshold
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultMaxCycles
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		cfg:     cfg,
		log:     logger,
		records: make(map[string]*Record),
	}
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Observe stores code as the latest output for key and scores it against the
// previous one.
func (c *Controller) Observe(cycle int, key string, code sdr.SparseCode) Observation {
	c.mu.Lock()
	defer c.mu.Unlock()

	obs := Observation{Key: key, Cycle: cycle, Active: code.Len()}
	rec, ok := c.records[key]
	if !ok {
		obs.First = true
		rec = &Record{Key: key}
		c.records[key] = rec
	} else {
		obs.Similarity = sdr.Similarity(rec.Code, code)
	}
	rec.Code = code.Clone()
	rec.Similarity = obs.Similarity
	rec.Cycle = cycle
	return obs
}

// OnStabilityChanged is the callback handed to the coder.
func (c *Controller) OnStabilityChanged(stable bool, seenInputs, presentation int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case stable && c.state == Unstable:
		c.state = Stable
		c.transitions++
		c.log.Info("coder entered stable state", "cycle", c.cycles, "seen_inputs", seenInputs, "presentation", presentation)
	case !stable && c.state == Stable:
		c.state = Unstable
		c.transitions++
		c.regressions++
		c.log.Warn("coder left stable state", "cycle", c.cycles, "seen_inputs", seenInputs, "presentation", presentation, "stable_cycles", c.stableCycles)
	}
}

// EndCycle closes cycle and reports whether training should stop.
func (c *Controller) EndCycle(cycle int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return true
	}
	c.cycles = cycle + 1
	if c.state == Stable {
		c.stableCycles++
	} else {
		c.stableCycles = 0
	}

	switch {
	case c.stableCycles > c.cfg.StableThreshold:
		c.done = true
		c.reason = ReasonStable
	case c.cycles >= c.cfg.MaxCycles:
		c.done = true
		c.reason = ReasonBudgetExhausted
		c.log.Warn("cycle budget exhausted before convergence", "cycles", c.cycles, "stable_cycles", c.stableCycles)
	}
	return c.done
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{
		Cycles:       c.cycles,
		StableCycles: c.stableCycles,
		Converged:    c.reason == ReasonStable,
		Reason:       c.reason,
		Transitions:  c.transitions,
		Regressions:  c.regressions,
	}
}

// Records returns a copy of every key's latest record ordered by key.
func (c *Controller) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		cp := *rec
		cp.Code = rec.Code.Clone()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]*Record)
	c.state = Unstable
	c.stableCycles = 0
	c.cycles = 0
	c.transitions = 0
	c.regressions = 0
	c.done = false
	c.reason = ""
}
