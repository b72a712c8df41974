package storage

import (
	"fmt"
	"sort"

	"sdrprobe/internal/model"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindBolt   = "bolt"
)

func DefaultStoreKind() string {
	return KindMemory
}

func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(path)
	case KindBolt:
		return NewBoltStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// sortRunsNewestFirst orders runs by creation time, newest first, falling back
// to id for equal timestamps.
func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
