package coder

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"sdrprobe/internal/sdr"
)

type Config struct {
	InputWidth    int     `json:"input_width"`
	Columns       int     `json:"columns"`
	ActiveColumns int     `json:"active_columns"`
	PotentialPct  float64 `json:"potential_pct"`
	ConnectedPerm float64 `json:"connected_perm"`
	PermInc       float64 `json:"perm_inc"`
	PermDec       float64 `json:"perm_dec"`
	StimulusMin   int     `json:"stimulus_min"`
	StableCycles  int     `json:"stable_cycles"`
	Seed          int64   `json:"seed"`
}

func DefaultConfig(inputWidth int) Config {
	return Config{
		InputWidth:    inputWidth,
		Columns:       1024,
		ActiveColumns: 20,
		PotentialPct:  0.5,
		ConnectedPerm: 0.5,
		PermInc:       0.05,
		PermDec:       0.01,
		StimulusMin:   1,
		StableCycles:  defaultStableCycles,
		Seed:          1,
	}
}

func (c Config) Validate() error {
	if c.InputWidth <= 0 {
		return errors.New("input width must be > 0")
	}
	if c.Columns <= 0 {
		return errors.New("columns must be > 0")
	}
	if c.ActiveColumns <= 0 || c.ActiveColumns > c.Columns {
		return fmt.Errorf("active columns must be in [1, %d], got %d", c.Columns, c.ActiveColumns)
	}
	if c.PotentialPct <= 0 || c.PotentialPct > 1 {
		return fmt.Errorf("potential pct must be in (0,1], got %g", c.PotentialPct)
	}
	if c.ConnectedPerm <= 0 || c.ConnectedPerm >= 1 {
		return fmt.Errorf("connected permanence must be in (0,1), got %g", c.ConnectedPerm)
	}
	if c.PermInc < 0 || c.PermDec < 0 {
		return errors.New("permanence increments must be >= 0")
	}
	return nil
}

type column struct {
	potential []int
	perms     []float64
	tieBreak  float64
}

// SpatialPooler is a compact global-inhibition spatial pooler: every column
// samples a random potential pool of the input, overlaps are counted over
// connected synapses and the ActiveColumns strongest columns win.
type SpatialPooler struct {
	cfg         Config
	columns     []column
	homeostasis *Homeostasis
}

func NewSpatialPooler(cfg Config, onStability StabilityFunc) (*SpatialPooler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	poolSize := int(cfg.PotentialPct*float64(cfg.InputWidth) + 0.5)
	if poolSize < 1 {
		poolSize = 1
	}

	columns := make([]column, cfg.Columns)
	for i := range columns {
		potential := rng.Perm(cfg.InputWidth)[:poolSize]
		sort.Ints(potential)
		perms := make([]float64, len(potential))
		for j := range perms {
			perms[j] = clampPerm(cfg.ConnectedPerm + (rng.Float64()-0.5)*0.2)
		}
		columns[i] = column{
			potential: potential,
			perms:     perms,
			tieBreak:  rng.Float64() * 1e-3,
		}
	}

	return &SpatialPooler{
		cfg:         cfg,
		columns:     columns,
		homeostasis: NewHomeostasis(cfg.StableCycles, onStability),
	}, nil
}

func (p *SpatialPooler) Config() Config {
	return p.cfg
}

func (p *SpatialPooler) Stable() bool {
	return p.homeostasis.Stable()
}

func (p *SpatialPooler) Compute(input []bool, learn bool) (sdr.SparseCode, error) {
	if len(input) != p.cfg.InputWidth {
		return nil, fmt.Errorf("input width mismatch: got=%d want=%d", len(input), p.cfg.InputWidth)
	}

	type candidate struct {
		idx   int
		score float64
	}
	candidates := make([]candidate, 0, len(p.columns))
	for i := range p.columns {
		overlap := p.overlap(i, input)
		if overlap < p.cfg.StimulusMin || overlap == 0 {
			continue
		}
		candidates = append(candidates, candidate{idx: i, score: float64(overlap) + p.columns[i].tieBreak})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].idx < candidates[j].idx
		}
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > p.cfg.ActiveColumns {
		candidates = candidates[:p.cfg.ActiveColumns]
	}

	winners := make(sdr.SparseCode, 0, len(candidates))
	for _, c := range candidates {
		winners = append(winners, c.idx)
	}
	sort.Ints(winners)

	if learn {
		for _, idx := range winners {
			p.adapt(idx, input)
		}
		p.homeostasis.Observe(input, winners)
	}
	return winners, nil
}

func (p *SpatialPooler) overlap(idx int, input []bool) int {
	col := &p.columns[idx]
	n := 0
	for j, in := range col.potential {
		if input[in] && col.perms[j] >= p.cfg.ConnectedPerm {
			n++
		}
	}
	return n
}

func (p *SpatialPooler) adapt(idx int, input []bool) {
	col := &p.columns[idx]
	for j, in := range col.potential {
		if input[in] {
			col.perms[j] = clampPerm(col.perms[j] + p.cfg.PermInc)
		} else {
			col.perms[j] = clampPerm(col.perms[j] - p.cfg.PermDec)
		}
	}
}

func clampPerm(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
