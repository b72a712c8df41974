package storage

import (
	"context"
	"errors"
	"sync"

	"sdrprobe/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	history     map[string][]model.CycleDiagnostics
	queries     map[string][]model.QueryRecord
	memories    map[string]map[string]model.PatternMemorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]model.CycleDiagnostics)
	s.queries = make(map[string][]model.QueryRecord)
	s.memories = make(map[string]map[string]model.PatternMemorySnapshot)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) SaveTrainingHistory(_ context.Context, runID string, history []model.CycleDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	copied := make([]model.CycleDiagnostics, len(history))
	copy(copied, history)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrainingHistory(_ context.Context, runID string) ([]model.CycleDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.CycleDiagnostics, len(history))
	copy(copied, history)
	return copied, true, nil
}

func (s *MemoryStore) SaveQueryResults(_ context.Context, runID string, results []model.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.queries[runID] = cloneQueries(results)
	return nil
}

func (s *MemoryStore) GetQueryResults(_ context.Context, runID string) ([]model.QueryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, ok := s.queries[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneQueries(results), true, nil
}

func (s *MemoryStore) SavePatternMemory(_ context.Context, runID string, snapshot model.PatternMemorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	byMatcher, ok := s.memories[runID]
	if !ok {
		byMatcher = make(map[string]model.PatternMemorySnapshot)
		s.memories[runID] = byMatcher
	}
	byMatcher[snapshot.Matcher] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetPatternMemory(_ context.Context, runID, matcher string) (model.PatternMemorySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.memories[runID][matcher]
	if !ok {
		return model.PatternMemorySnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

func cloneRun(run model.RunRecord) model.RunRecord {
	out := run
	out.Config.Inputs = append([]float64(nil), run.Config.Inputs...)
	out.Config.Matchers = append([]string(nil), run.Config.Matchers...)
	out.Summaries = append([]model.MatcherSummary(nil), run.Summaries...)
	return out
}

func cloneQueries(results []model.QueryRecord) []model.QueryRecord {
	copied := make([]model.QueryRecord, 0, len(results))
	for _, rec := range results {
		rec.Results = append([]model.MatchRecord(nil), rec.Results...)
		copied = append(copied, rec)
	}
	return copied
}

func cloneSnapshot(snapshot model.PatternMemorySnapshot) model.PatternMemorySnapshot {
	out := snapshot
	out.Labels = append([]string(nil), snapshot.Labels...)
	out.Votes = append([]model.VoteEntry(nil), snapshot.Votes...)
	if snapshot.Entries != nil {
		out.Entries = make([]model.PatternEntry, 0, len(snapshot.Entries))
		for _, entry := range snapshot.Entries {
			out.Entries = append(out.Entries, model.PatternEntry{
				Label: entry.Label,
				Code:  append([]int(nil), entry.Code...),
			})
		}
	}
	return out
}
