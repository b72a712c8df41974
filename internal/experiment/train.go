// Package experiment drives a sparse coder through stability-gated training
// and measures how well pattern memories reconstruct inputs from its codes.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sdrprobe/internal/coder"
	"sdrprobe/internal/encoder"
	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
	"sdrprobe/internal/stability"
)

type TrainingResult struct {
	Outcome model.TrainingOutcome
	History []model.CycleDiagnostics
}

// Train presents every input once per cycle with learning enabled until the
// controller reports completion. All inputs of a cycle are computed before the
// next cycle starts. The coder's stability callback must already be wired to
// ctrl.OnStabilityChanged.
func Train(ctx context.Context, enc encoder.Encoder, sc coder.SparseCoder, ctrl *stability.Controller, inputs []float64, logger *slog.Logger) (TrainingResult, error) {
	if enc == nil || sc == nil || ctrl == nil {
		return TrainingResult{}, errors.New("encoder, coder and controller are required")
	}
	if len(inputs) == 0 {
		return TrainingResult{}, errors.New("at least one input is required")
	}
	if err := sdr.CheckLabels(inputs); err != nil {
		return TrainingResult{}, err
	}
	logger = loggerOrDiscard(logger)

	history := make([]model.CycleDiagnostics, 0, 16)
	for cycle := 0; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return TrainingResult{}, err
		}

		diag := model.CycleDiagnostics{Cycle: cycle, MinSimilarity: 1}
		compared := 0
		for _, input := range inputs {
			bits, err := enc.Encode(input)
			if err != nil {
				return TrainingResult{}, fmt.Errorf("encode %s: %w", sdr.FormatLabel(input), err)
			}
			code, err := sc.Compute(bits, true)
			if err != nil {
				return TrainingResult{}, fmt.Errorf("compute %s: %w", sdr.FormatLabel(input), err)
			}
			obs := ctrl.Observe(cycle, sdr.FormatLabel(input), code)
			logger.Debug("train", "cycle", cycle, "input", obs.Key, "active", obs.Active, "similarity", obs.Similarity)

			diag.MeanActive += float64(obs.Active)
			if obs.First {
				continue
			}
			compared++
			diag.MeanSimilarity += obs.Similarity
			if obs.Similarity < diag.MinSimilarity {
				diag.MinSimilarity = obs.Similarity
			}
		}
		diag.MeanActive /= float64(len(inputs))
		if compared > 0 {
			diag.MeanSimilarity /= float64(compared)
		} else {
			diag.MinSimilarity = 0
		}

		done := ctrl.EndCycle(cycle)
		out := ctrl.Outcome()
		diag.Stable = ctrl.State() == stability.Stable
		diag.StableCycles = out.StableCycles
		history = append(history, diag)
		logger.Info("cycle", "cycle", cycle, "state", ctrl.State().String(), "stable_cycles", out.StableCycles, "mean_similarity", diag.MeanSimilarity, "mean_active", diag.MeanActive)

		if done {
			if !out.Converged {
				logger.Warn("training stopped without confirmed convergence", "cycles", out.Cycles, "reason", out.Reason)
			}
			return TrainingResult{Outcome: toModelOutcome(out), History: history}, nil
		}
	}
}

func toModelOutcome(out stability.Outcome) model.TrainingOutcome {
	return model.TrainingOutcome{
		Cycles:       out.Cycles,
		StableCycles: out.StableCycles,
		Converged:    out.Converged,
		Reason:       out.Reason,
		Transitions:  out.Transitions,
		Regressions:  out.Regressions,
	}
}
