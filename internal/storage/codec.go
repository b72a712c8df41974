package storage

import (
	"encoding/json"
	"errors"

	"sdrprobe/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePatternMemory(snapshot model.PatternMemorySnapshot) ([]byte, error) {
	return json.Marshal(snapshot)
}

func DecodePatternMemory(data []byte) (model.PatternMemorySnapshot, error) {
	var snapshot model.PatternMemorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PatternMemorySnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PatternMemorySnapshot{}, err
	}
	return snapshot, nil
}

func EncodeTrainingHistory(history []model.CycleDiagnostics) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeTrainingHistory(data []byte) ([]model.CycleDiagnostics, error) {
	var history []model.CycleDiagnostics
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeQueryResults(results []model.QueryRecord) ([]byte, error) {
	return json.Marshal(results)
}

func DecodeQueryResults(data []byte) ([]model.QueryRecord, error) {
	var results []model.QueryRecord
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
