package sdrprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sdrprobe/internal/experiment"
	"sdrprobe/internal/model"
	"sdrprobe/internal/stats"
	"sdrprobe/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "sdrprobe.db"

	defaultMinVal = 0
	defaultMaxVal = 4
	defaultStep   = 1

	maxGeneratedInputs = 10000
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
}

type Client struct {
	store       storage.Store
	initialized bool
	logger      *slog.Logger

	benchmarksDir string
	exportsDir    string
}

// RunRequest configures one reconstruction experiment. When Inputs is empty
// the input set is generated from MinVal to MaxVal in Step increments.
type RunRequest struct {
	Inputs          []float64 `json:"inputs"`
	MinVal          float64   `json:"min_val"`
	MaxVal          float64   `json:"max_val"`
	Step            float64   `json:"step"`
	EncoderWidth    int       `json:"encoder_width"`
	EncoderActive   int       `json:"encoder_active"`
	Noise           float64   `json:"noise"`
	Coder           string    `json:"coder"`
	Columns         int       `json:"columns"`
	ActiveColumns   int       `json:"active_columns"`
	PotentialPct    float64   `json:"potential_pct"`
	CoderStable     int       `json:"coder_stable_cycles"`
	MaxCycles       int       `json:"max_cycles"`
	StableThreshold int       `json:"stable_threshold"`
	Matchers        []string  `json:"matchers"`
	KNNNeighbours   int       `json:"knn_neighbours"`
	ShuffleQueries  bool      `json:"shuffle_queries"`
	Seed            int64     `json:"seed"`
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	CreatedAtUTC string
	Elapsed      time.Duration
	Config       model.ExperimentConfig
	Training     model.TrainingOutcome
	Summaries    []model.MatcherSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Coder        string
	Inputs       int
	Seed         int64
	Noise        float64
	Cycles       int
	Converged    bool
	MeanAbsError map[string]float64
}

type ReportRequest struct {
	RunID  string
	Latest bool
}

type Report struct {
	Run     model.RunRecord
	History []model.CycleDiagnostics
	Queries []model.QueryRecord
	Memory  []model.PatternMemorySnapshot
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg, err := req.experimentConfig()
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	result, err := experiment.Run(ctx, cfg, logger)
	if err != nil {
		return RunSummary{}, err
	}
	cfg = experiment.Normalize(cfg)
	createdAt := started.UTC().Format(time.RFC3339Nano)

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    createdAt,
		Config:          cfg,
		Training:        result.Training.Outcome,
		Summaries:       result.Summaries,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTrainingHistory(ctx, runID, result.Training.History); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveQueryResults(ctx, runID, result.Queries); err != nil {
		return RunSummary{}, err
	}
	for _, m := range result.Matchers {
		snapshot := m.Snapshot()
		snapshot.VersionedRecord = storage.CurrentVersion()
		if err := c.store.SavePatternMemory(ctx, runID, snapshot); err != nil {
			return RunSummary{}, err
		}
	}

	artifacts := stats.RunArtifacts{
		RunID:        runID,
		CreatedAtUTC: createdAt,
		Config:       cfg,
		Training:     result.Training.Outcome,
		History:      result.Training.History,
		Queries:      result.Queries,
		Summaries:    result.Summaries,
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, artifacts)
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, artifacts.IndexEntry()); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: runDir,
		CreatedAtUTC: createdAt,
		Elapsed:      time.Since(started),
		Config:       cfg,
		Training:     result.Training.Outcome,
		Summaries:    result.Summaries,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Coder:        e.Coder,
			Inputs:       e.Inputs,
			Seed:         e.Seed,
			Noise:        e.Noise,
			Cycles:       e.Cycles,
			Converged:    e.Converged,
			MeanAbsError: e.MeanAbsError,
		})
	}
	return out, nil
}

// Report loads a persisted run with its training history, per-query results
// and the learned pattern memories.
func (c *Client) Report(ctx context.Context, req ReportRequest) (Report, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "report")
	if err != nil {
		return Report{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return Report{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("run not found: %s", runID)
	}
	history, _, err := c.store.GetTrainingHistory(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	queries, _, err := c.store.GetQueryResults(ctx, runID)
	if err != nil {
		return Report{}, err
	}

	report := Report{Run: run, History: history, Queries: queries}
	for _, name := range run.Config.Matchers {
		snapshot, ok, err := c.store.GetPatternMemory(ctx, runID, name)
		if err != nil {
			return Report{}, err
		}
		if ok {
			report.Memory = append(report.Memory, snapshot)
		}
	}
	return report, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Reset drops every persisted run from the store. Artifacts on disk are kept.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		if runID == "" {
			return "", fmt.Errorf("%s requires run id or latest", op)
		}
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (r RunRequest) experimentConfig() (model.ExperimentConfig, error) {
	minVal, maxVal := r.MinVal, r.MaxVal
	if minVal == 0 && maxVal == 0 {
		minVal, maxVal = defaultMinVal, defaultMaxVal
	}
	if maxVal <= minVal {
		return model.ExperimentConfig{}, fmt.Errorf("max value %g must be greater than min value %g", maxVal, minVal)
	}
	if r.Noise < 0 || r.Noise > 1 {
		return model.ExperimentConfig{}, fmt.Errorf("noise must be in [0,1], got %g", r.Noise)
	}

	inputs := append([]float64(nil), r.Inputs...)
	if len(inputs) == 0 {
		generated, err := GenerateInputs(minVal, maxVal, r.Step)
		if err != nil {
			return model.ExperimentConfig{}, err
		}
		inputs = generated
	}

	return model.ExperimentConfig{
		Inputs:          inputs,
		MinVal:          minVal,
		MaxVal:          maxVal,
		EncoderWidth:    r.EncoderWidth,
		EncoderActive:   r.EncoderActive,
		Noise:           r.Noise,
		Coder:           r.Coder,
		Columns:         r.Columns,
		ActiveColumns:   r.ActiveColumns,
		PotentialPct:    r.PotentialPct,
		CoderStable:     r.CoderStable,
		MaxCycles:       r.MaxCycles,
		StableThreshold: r.StableThreshold,
		Matchers:        append([]string(nil), r.Matchers...),
		KNNNeighbours:   r.KNNNeighbours,
		ShuffleQueries:  r.ShuffleQueries,
		Seed:            r.Seed,
	}, nil
}

// GenerateInputs returns minVal, minVal+step, ... up to and including maxVal.
// Values are rounded to two decimals so they survive the label codec.
func GenerateInputs(minVal, maxVal, step float64) ([]float64, error) {
	if step == 0 {
		step = defaultStep
	}
	if step < 0 {
		return nil, fmt.Errorf("step must be > 0, got %g", step)
	}
	if maxVal < minVal {
		return nil, fmt.Errorf("max value %g must be >= min value %g", maxVal, minVal)
	}
	count := int(math.Floor((maxVal-minVal)/step+1e-9)) + 1
	if count > maxGeneratedInputs {
		return nil, fmt.Errorf("step %g yields %d inputs, limit is %d", step, count, maxGeneratedInputs)
	}
	inputs := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v := minVal + float64(i)*step
		inputs = append(inputs, math.Round(v*100)/100)
	}
	return inputs, nil
}
