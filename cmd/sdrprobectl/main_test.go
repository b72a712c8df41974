package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func baseArgs(dir string) []string {
	return []string{
		"--db-path", filepath.Join(dir, "sdrprobe.db"),
		"--benchmarks-dir", filepath.Join(dir, "benchmarks"),
		"--exports-dir", filepath.Join(dir, "exports"),
		"--log-level", "warn",
	}
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run %v: %v\nstderr=%s", args, err, stderr.String())
	}
	return stdout.String(), stderr.String()
}

func TestRunRunsReportExportFlow(t *testing.T) {
	dir := t.TempDir()
	global := baseArgs(dir)

	out, _ := runCLI(t, append([]string{"run",
		"--coder", "identity",
		"--coder-stable", "1",
		"--stable-threshold", "2",
		"--inputs", "0,1,2,3,4",
		"--json",
	}, global...)...)

	var summary struct {
		RunID    string `json:"run_id"`
		Training struct {
			Converged bool `json:"converged"`
		} `json:"training"`
		Summaries []struct {
			Matcher      string  `json:"matcher"`
			MeanAbsError float64 `json:"mean_abs_error"`
			Misses       int     `json:"misses"`
		} `json:"summaries"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode run json: %v\n%s", err, out)
	}
	if summary.RunID == "" || !summary.Training.Converged || len(summary.Summaries) != 2 {
		t.Fatalf("unexpected run summary: %+v", summary)
	}
	for _, s := range summary.Summaries {
		if s.MeanAbsError != 0 || s.Misses != 0 {
			t.Fatalf("expected exact reconstruction for %s: %+v", s.Matcher, s)
		}
	}

	out, _ = runCLI(t, append([]string{"runs"}, global...)...)
	if !strings.Contains(out, "run_id="+summary.RunID) || !strings.Contains(out, "htm:0.0000,knn:0.0000") {
		t.Fatalf("unexpected runs output: %s", out)
	}

	out, _ = runCLI(t, append([]string{"report", "--latest", "--queries"}, global...)...)
	if !strings.Contains(out, "run_id="+summary.RunID) || !strings.Contains(out, "query=2.00 matcher=knn prediction=2.00") {
		t.Fatalf("unexpected report output: %s", out)
	}
	if !strings.Contains(out, "memory=htm labels=5") {
		t.Fatalf("expected memory summary in report: %s", out)
	}

	out, _ = runCLI(t, append([]string{"export", "--run-id", summary.RunID}, global...)...)
	if !strings.Contains(out, "exported run_id="+summary.RunID) {
		t.Fatalf("unexpected export output: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "exports", summary.RunID, "training_history.csv")); err != nil {
		t.Fatalf("expected exported history: %v", err)
	}

	runCLI(t, append([]string{"reset"}, global...)...)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"report", "--run-id", summary.RunID}, global...), &stdout, &stderr)
	if err == nil {
		t.Fatal("expected report to fail after reset")
	}
}

func TestRunWithConfigFileAndLogs(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "run.json")
	config := `{"inputs": [0, 2, 4], "max_val": 4, "coder": "identity", "coder_stable_cycles": 1, "stable_threshold": 1, "matchers": ["knn"]}`
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := baseArgs(dir)
	args[len(args)-1] = "info"
	out, logs := runCLI(t, append([]string{"run", "--config", configPath, "--seed", "3"}, args...)...)
	if !strings.Contains(out, "inputs=3 coder=identity") || !strings.Contains(out, "matcher=knn") {
		t.Fatalf("unexpected run output: %s", out)
	}
	if strings.Contains(out, "matcher=htm") {
		t.Fatalf("config matchers should limit evaluation: %s", out)
	}
	if !strings.Contains(logs, "msg=cycle") || !strings.Contains(logs, "msg=query") || !strings.Contains(logs, "msg=summary") {
		t.Fatalf("expected structured progress logs: %s", logs)
	}
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	cases := [][]string{
		{"bogus"},
		append([]string{"runs", "--limit", "0"}, baseArgs(dir)...),
		append([]string{"export"}, baseArgs(dir)...),
		{"run", "--log-level", "loud", "--benchmarks-dir", dir},
		append([]string{"run", "--coder", "identity", "--min", "5", "--max", "1"}, baseArgs(dir)...),
	}
	for _, args := range cases {
		var stdout, stderr bytes.Buffer
		if err := run(context.Background(), args, &stdout, &stderr); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestDefaultStoreOutlivesProcess(t *testing.T) {
	root := newRootCmd(nil)
	if got := root.PersistentFlags().Lookup("store").DefValue; got != "bolt" {
		t.Fatalf("default store should persist between invocations, got %q", got)
	}

	dir := t.TempDir()
	global := baseArgs(dir)
	runCLI(t, append([]string{"run", "--coder", "identity", "--coder-stable", "1", "--stable-threshold", "1", "--inputs", "0,2,4"}, global...)...)
	out, _ := runCLI(t, append([]string{"report", "--latest"}, global...)...)
	if !strings.Contains(out, "inputs=3") {
		t.Fatalf("report in a fresh invocation should find the run: %s", out)
	}
}
