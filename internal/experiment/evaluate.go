package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"sdrprobe/internal/coder"
	"sdrprobe/internal/encoder"
	"sdrprobe/internal/memory"
	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
	"sdrprobe/internal/stats"
)

// ErrCorruptLabel marks a predicted label that does not parse back into an
// input value. It is distinct from a query without any prediction.
var ErrCorruptLabel = errors.New("corrupt predicted label")

// Evaluator runs the learn and query phases against a coder whose learning is
// disabled.
type Evaluator struct {
	Encoder        encoder.Encoder
	Coder          coder.SparseCoder
	Inputs         []float64
	ShuffleQueries bool
	Seed           int64
	Logger         *slog.Logger
}

func (e *Evaluator) validate(matchers []memory.Matcher) error {
	if e.Encoder == nil || e.Coder == nil {
		return errors.New("encoder and coder are required")
	}
	if len(e.Inputs) == 0 {
		return errors.New("at least one input is required")
	}
	if err := sdr.CheckLabels(e.Inputs); err != nil {
		return err
	}
	if len(matchers) == 0 {
		return errors.New("at least one matcher is required")
	}
	return nil
}

func (e *Evaluator) code(input float64) (sdr.SparseCode, error) {
	bits, err := e.Encoder.Encode(input)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sdr.FormatLabel(input), err)
	}
	code, err := e.Coder.Compute(bits, false)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", sdr.FormatLabel(input), err)
	}
	return code, nil
}

// Learn teaches every matcher each input's code under the input's label, in
// input order.
func (e *Evaluator) Learn(ctx context.Context, matchers []memory.Matcher) error {
	if err := e.validate(matchers); err != nil {
		return err
	}
	logger := loggerOrDiscard(e.Logger)
	for _, input := range e.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := e.code(input)
		if err != nil {
			return err
		}
		label := sdr.FormatLabel(input)
		for _, m := range matchers {
			if err := m.Learn(label, code); err != nil {
				return fmt.Errorf("%s learn %s: %w", m.Name(), label, err)
			}
		}
		logger.Debug("learn", "input", label, "active", code.Len())
	}
	return nil
}

// QueryOrder returns the order inputs are presented in during the query phase.
func (e *Evaluator) QueryOrder() []float64 {
	order := append([]float64(nil), e.Inputs...)
	if e.ShuffleQueries {
		rng := rand.New(rand.NewSource(e.Seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

// Query asks every matcher to reconstruct each input from a fresh code and
// keeps the top prediction.
func (e *Evaluator) Query(ctx context.Context, matchers []memory.Matcher) ([]model.QueryRecord, error) {
	if err := e.validate(matchers); err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(e.Logger)

	order := e.QueryOrder()
	records := make([]model.QueryRecord, 0, len(order))
	for i, input := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := e.code(input)
		if err != nil {
			return nil, err
		}
		rec := model.QueryRecord{
			Order:   i,
			Input:   input,
			Label:   sdr.FormatLabel(input),
			Active:  code.Len(),
			Results: make([]model.MatchRecord, 0, len(matchers)),
		}
		attrs := []any{"input", rec.Label, "active", rec.Active}
		for _, m := range matchers {
			result, err := topMatch(m, input, code)
			if err != nil {
				return nil, err
			}
			rec.Results = append(rec.Results, result)
			if result.Found {
				attrs = append(attrs, m.Name()+"_predicted", result.Label, m.Name()+"_similarity", result.Similarity, m.Name()+"_error", result.Error)
			} else {
				attrs = append(attrs, m.Name()+"_predicted", "none")
			}
		}
		logger.Info("query", attrs...)
		records = append(records, rec)
	}
	return records, nil
}

func topMatch(m memory.Matcher, input float64, code sdr.SparseCode) (model.MatchRecord, error) {
	result := model.MatchRecord{Matcher: m.Name()}
	predictions := m.Query(code)
	if len(predictions) == 0 {
		return result, nil
	}
	best := predictions[0]
	value, err := sdr.ParseLabel(best.Label)
	if err != nil {
		return model.MatchRecord{}, fmt.Errorf("%w: matcher %s input %s: %v", ErrCorruptLabel, m.Name(), sdr.FormatLabel(input), err)
	}
	result.Found = true
	result.Label = best.Label
	result.Predicted = value
	result.Similarity = best.Similarity
	result.Error = math.Abs(input - value)
	return result, nil
}

// Summarize aggregates query records per matcher, in the order matchers first
// appear. Queries without a prediction count as misses and are left out of
// the error statistics.
func Summarize(records []model.QueryRecord) []model.MatcherSummary {
	type acc struct {
		summary     model.MatcherSummary
		errs        []float64
		sims        []float64
		originals   []float64
		predictions []float64
	}
	byName := make(map[string]*acc)
	names := make([]string, 0, 2)
	for _, rec := range records {
		for _, r := range rec.Results {
			a, ok := byName[r.Matcher]
			if !ok {
				a = &acc{summary: model.MatcherSummary{Matcher: r.Matcher}}
				byName[r.Matcher] = a
				names = append(names, r.Matcher)
			}
			a.summary.Queries++
			if !r.Found {
				a.summary.Misses++
				continue
			}
			a.summary.Found++
			if r.Label == rec.Label {
				a.summary.ExactMatches++
			}
			a.errs = append(a.errs, r.Error)
			a.sims = append(a.sims, r.Similarity)
			a.originals = append(a.originals, rec.Input)
			a.predictions = append(a.predictions, r.Predicted)
		}
	}

	out := make([]model.MatcherSummary, 0, len(names))
	for _, name := range names {
		a := byName[name]
		if len(a.errs) > 0 {
			a.summary.MeanAbsError, _ = stats.Avg(a.errs)
			a.summary.StdAbsError, _ = stats.Std(a.errs)
			a.summary.MaxAbsError, _ = stats.Max(a.errs)
			a.summary.MeanSimilarity, _ = stats.Avg(a.sims)
			a.summary.Cosine, _ = stats.Cosine(a.originals, a.predictions)
		}
		out = append(out, a.summary)
	}
	return out
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
