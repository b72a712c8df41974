package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sdrprobe/internal/model"

	"go.etcd.io/bbolt"
)

var (
	bucketRuns     = []byte("runs")
	bucketHistory  = []byte("training_history")
	bucketQueries  = []byte("query_results")
	bucketMemories = []byte("pattern_memories")

	boltBuckets = [][]byte{bucketRuns, bucketHistory, bucketQueries, bucketMemories}
)

// BoltStore keeps one JSON payload per key in a bbolt file.
type BoltStore struct {
	path string

	mu sync.RWMutex
	db *bbolt.DB
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

func (s *BoltStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("bolt path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *BoltStore) Reset(_ context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(bucketRuns, run.ID, payload)
}

func (s *BoltStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(bucketRuns, id)
	if err != nil || !ok {
		return model.RunRecord{}, ok, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *BoltStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	runs := make([]model.RunRecord, 0, 16)
	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			run, err := DecodeRun(v)
			if err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *BoltStore) SaveTrainingHistory(_ context.Context, runID string, history []model.CycleDiagnostics) error {
	payload, err := EncodeTrainingHistory(history)
	if err != nil {
		return err
	}
	return s.put(bucketHistory, runID, payload)
}

func (s *BoltStore) GetTrainingHistory(_ context.Context, runID string) ([]model.CycleDiagnostics, bool, error) {
	payload, ok, err := s.get(bucketHistory, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodeTrainingHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode training history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *BoltStore) SaveQueryResults(_ context.Context, runID string, results []model.QueryRecord) error {
	payload, err := EncodeQueryResults(results)
	if err != nil {
		return err
	}
	return s.put(bucketQueries, runID, payload)
}

func (s *BoltStore) GetQueryResults(_ context.Context, runID string) ([]model.QueryRecord, bool, error) {
	payload, ok, err := s.get(bucketQueries, runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	results, err := DecodeQueryResults(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode query results %s: %w", runID, err)
	}
	return results, true, nil
}

func (s *BoltStore) SavePatternMemory(_ context.Context, runID string, snapshot model.PatternMemorySnapshot) error {
	payload, err := EncodePatternMemory(snapshot)
	if err != nil {
		return err
	}
	return s.put(bucketMemories, memoryKey(runID, snapshot.Matcher), payload)
}

func (s *BoltStore) GetPatternMemory(_ context.Context, runID, matcher string) (model.PatternMemorySnapshot, bool, error) {
	payload, ok, err := s.get(bucketMemories, memoryKey(runID, matcher))
	if err != nil || !ok {
		return model.PatternMemorySnapshot{}, ok, err
	}
	snapshot, err := DecodePatternMemory(payload)
	if err != nil {
		return model.PatternMemorySnapshot{}, false, fmt.Errorf("decode pattern memory %s/%s: %w", runID, matcher, err)
	}
	return snapshot, true, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BoltStore) put(bucket []byte, key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), payload)
	})
}

func (s *BoltStore) get(bucket []byte, key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data != nil {
			// bbolt values are only valid inside the transaction
			payload = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, payload != nil, nil
}

func (s *BoltStore) getDB() (*bbolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func memoryKey(runID, matcher string) string {
	return runID + "/" + matcher
}
