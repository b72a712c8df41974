package experiment

import (
	"context"
	"errors"
	"log/slog"

	"sdrprobe/internal/coder"
	"sdrprobe/internal/encoder"
	"sdrprobe/internal/memory"
	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
	"sdrprobe/internal/stability"
)

const (
	defaultEncoderWidth  = 200
	defaultEncoderActive = 15
)

type Result struct {
	Training  TrainingResult
	Stability []stability.Record
	Queries   []model.QueryRecord
	Summaries []model.MatcherSummary
	Matchers  []memory.Matcher
}

// Normalize fills unset fields of cfg with defaults.
func Normalize(cfg model.ExperimentConfig) model.ExperimentConfig {
	if cfg.EncoderWidth <= 0 {
		cfg.EncoderWidth = defaultEncoderWidth
	}
	if cfg.EncoderActive <= 0 {
		cfg.EncoderActive = defaultEncoderActive
	}
	if cfg.Coder == "" {
		cfg.Coder = coder.KindPooler
	}
	base := coder.DefaultConfig(cfg.EncoderWidth)
	if cfg.Columns <= 0 {
		cfg.Columns = base.Columns
	}
	if cfg.ActiveColumns <= 0 {
		cfg.ActiveColumns = base.ActiveColumns
	}
	if cfg.PotentialPct <= 0 {
		cfg.PotentialPct = base.PotentialPct
	}
	if cfg.CoderStable <= 0 {
		cfg.CoderStable = base.StableCycles
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = stability.DefaultMaxCycles
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = stability.DefaultStableThreshold
	}
	if len(cfg.Matchers) == 0 {
		cfg.Matchers = []string{memory.NameKNN, memory.NameHTM}
	}
	names := make([]string, len(cfg.Matchers))
	for i, name := range cfg.Matchers {
		names[i] = memory.NormalizeName(name)
	}
	cfg.Matchers = names
	return cfg
}

// Run trains a fresh coder on cfg.Inputs, teaches the configured matchers and
// evaluates reconstruction. Non-convergence is reported in the result, not as
// an error. Noise, when set, only degrades the query-phase encodings.
func Run(ctx context.Context, cfg model.ExperimentConfig, logger *slog.Logger) (Result, error) {
	cfg = Normalize(cfg)
	if len(cfg.Inputs) == 0 {
		return Result{}, errors.New("at least one input is required")
	}
	if err := sdr.CheckLabels(cfg.Inputs); err != nil {
		return Result{}, err
	}
	logger = loggerOrDiscard(logger)

	enc, err := encoder.NewScalarEncoder(cfg.EncoderWidth, cfg.EncoderActive, cfg.MinVal, cfg.MaxVal)
	if err != nil {
		return Result{}, err
	}
	ctrl := stability.NewController(stability.Config{
		StableThreshold: cfg.StableThreshold,
		MaxCycles:       cfg.MaxCycles,
		Logger:          logger,
	})
	coderCfg := coder.DefaultConfig(cfg.EncoderWidth)
	coderCfg.Columns = cfg.Columns
	coderCfg.ActiveColumns = cfg.ActiveColumns
	coderCfg.PotentialPct = cfg.PotentialPct
	coderCfg.StableCycles = cfg.CoderStable
	coderCfg.Seed = cfg.Seed
	sc, err := coder.NewCoder(cfg.Coder, coderCfg, ctrl.OnStabilityChanged)
	if err != nil {
		return Result{}, err
	}
	matchers, err := memory.NewMatchers(cfg.Matchers, cfg.KNNNeighbours)
	if err != nil {
		return Result{}, err
	}

	training, err := Train(ctx, enc, sc, ctrl, cfg.Inputs, logger)
	if err != nil {
		return Result{}, err
	}

	eval := &Evaluator{
		Encoder:        enc,
		Coder:          sc,
		Inputs:         cfg.Inputs,
		ShuffleQueries: cfg.ShuffleQueries,
		Seed:           cfg.Seed,
		Logger:         logger,
	}
	if err := eval.Learn(ctx, matchers); err != nil {
		return Result{}, err
	}
	if cfg.Noise > 0 {
		noisy, err := encoder.NewNoisyEncoder(enc, cfg.Noise, cfg.Seed)
		if err != nil {
			return Result{}, err
		}
		eval.Encoder = noisy
	}
	queries, err := eval.Query(ctx, matchers)
	if err != nil {
		return Result{}, err
	}

	summaries := Summarize(queries)
	for _, s := range summaries {
		logger.Info("summary", "matcher", s.Matcher, "queries", s.Queries, "misses", s.Misses, "exact", s.ExactMatches, "mean_abs_error", s.MeanAbsError, "mean_similarity", s.MeanSimilarity, "cosine", s.Cosine)
	}

	return Result{
		Training:  training,
		Stability: ctrl.Records(),
		Queries:   queries,
		Summaries: summaries,
		Matchers:  matchers,
	}, nil
}
