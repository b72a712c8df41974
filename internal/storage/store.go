package storage

import (
	"context"

	"sdrprobe/internal/model"
)

// Store defines transaction-like persistence operations for reconstruction runs.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTrainingHistory(ctx context.Context, runID string, history []model.CycleDiagnostics) error
	GetTrainingHistory(ctx context.Context, runID string) ([]model.CycleDiagnostics, bool, error)
	SaveQueryResults(ctx context.Context, runID string, results []model.QueryRecord) error
	GetQueryResults(ctx context.Context, runID string) ([]model.QueryRecord, bool, error)
	SavePatternMemory(ctx context.Context, runID string, snapshot model.PatternMemorySnapshot) error
	GetPatternMemory(ctx context.Context, runID, matcher string) (model.PatternMemorySnapshot, bool, error)
}
