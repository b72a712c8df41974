package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"sdrprobe/internal/model"
)

const (
	runIndexFile        = "run_index.json"
	configFile          = "config.json"
	summaryFile         = "summary.json"
	trainingHistoryFile = "training_history.csv"
	queriesFile         = "queries.csv"
)

type RunArtifacts struct {
	RunID        string                   `json:"run_id"`
	CreatedAtUTC string                   `json:"created_at_utc"`
	Config       model.ExperimentConfig   `json:"config"`
	Training     model.TrainingOutcome    `json:"training"`
	History      []model.CycleDiagnostics `json:"-"`
	Queries      []model.QueryRecord      `json:"-"`
	Summaries    []model.MatcherSummary   `json:"summaries"`
}

type RunSummary struct {
	RunID        string                 `json:"run_id"`
	CreatedAtUTC string                 `json:"created_at_utc"`
	Training     model.TrainingOutcome  `json:"training"`
	Summaries    []model.MatcherSummary `json:"summaries"`
}

type RunIndexEntry struct {
	RunID        string             `json:"run_id"`
	Coder        string             `json:"coder"`
	Inputs       int                `json:"inputs"`
	Seed         int64              `json:"seed"`
	Noise        float64            `json:"noise,omitempty"`
	Cycles       int                `json:"cycles"`
	Converged    bool               `json:"converged"`
	MeanAbsError map[string]float64 `json:"mean_abs_error"`
	CreatedAtUTC string             `json:"created_at_utc"`
}

// IndexEntry derives the run index line for a run.
func (a RunArtifacts) IndexEntry() RunIndexEntry {
	entry := RunIndexEntry{
		RunID:        a.RunID,
		Coder:        a.Config.Coder,
		Inputs:       len(a.Config.Inputs),
		Seed:         a.Config.Seed,
		Noise:        a.Config.Noise,
		Cycles:       a.Training.Cycles,
		Converged:    a.Training.Converged,
		MeanAbsError: make(map[string]float64, len(a.Summaries)),
		CreatedAtUTC: a.CreatedAtUTC,
	}
	for _, s := range a.Summaries {
		entry.MeanAbsError[s.Matcher] = s.MeanAbsError
	}
	return entry
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	summary := RunSummary{
		RunID:        artifacts.RunID,
		CreatedAtUTC: artifacts.CreatedAtUTC,
		Training:     artifacts.Training,
		Summaries:    artifacts.Summaries,
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	if err := WriteTrainingHistory(runDir, artifacts.History); err != nil {
		return "", err
	}
	if err := WriteQueries(runDir, artifacts.Queries); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, trainingHistoryFile, queriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (model.ExperimentConfig, bool, error) {
	var cfg model.ExperimentConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func WriteTrainingHistory(runDir string, history []model.CycleDiagnostics) error {
	file, err := os.Create(filepath.Join(runDir, trainingHistoryFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"cycle", "stable", "stable_cycles", "mean_similarity", "min_similarity", "mean_active"}); err != nil {
		return err
	}
	for _, d := range history {
		if err := writer.Write([]string{
			strconv.Itoa(d.Cycle),
			strconv.FormatBool(d.Stable),
			strconv.Itoa(d.StableCycles),
			formatFloat(d.MeanSimilarity),
			formatFloat(d.MinSimilarity),
			formatFloat(d.MeanActive),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTrainingHistory parses training_history.csv back into diagnostics.
func ReadTrainingHistory(baseDir, runID string) ([]model.CycleDiagnostics, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, trainingHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.CycleDiagnostics{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 6 {
		return nil, false, fmt.Errorf("training history header must have 6 columns")
	}

	history := make([]model.CycleDiagnostics, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		d, err := parseHistoryRow(record)
		if err != nil {
			return nil, false, err
		}
		history = append(history, d)
	}
	return history, true, nil
}

func parseHistoryRow(record []string) (model.CycleDiagnostics, error) {
	if len(record) < 6 {
		return model.CycleDiagnostics{}, fmt.Errorf("training history row must have 6 columns")
	}
	var (
		d   model.CycleDiagnostics
		err error
	)
	if d.Cycle, err = strconv.Atoi(record[0]); err != nil {
		return d, err
	}
	if d.Stable, err = strconv.ParseBool(record[1]); err != nil {
		return d, err
	}
	if d.StableCycles, err = strconv.Atoi(record[2]); err != nil {
		return d, err
	}
	if d.MeanSimilarity, err = strconv.ParseFloat(record[3], 64); err != nil {
		return d, err
	}
	if d.MinSimilarity, err = strconv.ParseFloat(record[4], 64); err != nil {
		return d, err
	}
	if d.MeanActive, err = strconv.ParseFloat(record[5], 64); err != nil {
		return d, err
	}
	return d, nil
}

// WriteQueries writes one row per query with a column group per matcher.
func WriteQueries(runDir string, queries []model.QueryRecord) error {
	file, err := os.Create(filepath.Join(runDir, queriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	var matchers []string
	if len(queries) > 0 {
		for _, r := range queries[0].Results {
			matchers = append(matchers, r.Matcher)
		}
	}
	header := []string{"order", "input", "label", "active"}
	for _, name := range matchers {
		header = append(header, name+"_found", name+"_label", name+"_similarity", name+"_error")
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, q := range queries {
		row := []string{strconv.Itoa(q.Order), formatFloat(q.Input), q.Label, strconv.Itoa(q.Active)}
		for _, r := range q.Results {
			row = append(row, strconv.FormatBool(r.Found), r.Label, formatFloat(r.Similarity), formatFloat(r.Error))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", strings.TrimPrefix(path, string(filepath.Separator)), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
