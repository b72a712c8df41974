package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sdrprobe/pkg/sdrprobe"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			items, err := client.Runs(cmd.Context(), sdrprobe.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "run_id=%s created=%s coder=%s inputs=%d seed=%d noise=%.2f cycles=%s converged=%t mae=%s\n",
					item.RunID,
					relativeTime(item.CreatedAtUTC),
					item.Coder,
					item.Inputs,
					item.Seed,
					item.Noise,
					humanize.Comma(int64(item.Cycles)),
					item.Converged,
					formatErrors(item.MeanAbsError),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs list as JSON")
	return cmd
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	var (
		runID   string
		latest  bool
		jsonOut bool
		queries bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the training trace and reconstruction results of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := client.Report(cmd.Context(), sdrprobe.ReportRequest{RunID: runID, Latest: latest})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, report)
			}
			printReport(out, report, queries)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id to report")
	cmd.Flags().BoolVar(&latest, "latest", false, "report the newest run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the report as JSON")
	cmd.Flags().BoolVar(&queries, "queries", false, "print one line per query")
	return cmd
}

func printReport(w io.Writer, report sdrprobe.Report, withQueries bool) {
	run := report.Run
	fmt.Fprintf(w, "run_id=%s created=%s coder=%s inputs=%d cycles=%s converged=%t reason=%s transitions=%d regressions=%d\n",
		run.ID, run.CreatedAtUTC, run.Config.Coder, len(run.Config.Inputs),
		humanize.Comma(int64(run.Training.Cycles)), run.Training.Converged, run.Training.Reason,
		run.Training.Transitions, run.Training.Regressions)
	for _, d := range report.History {
		fmt.Fprintf(w, "cycle=%d stable=%t stable_cycles=%d mean_similarity=%.4f min_similarity=%.4f mean_active=%.1f\n",
			d.Cycle, d.Stable, d.StableCycles, d.MeanSimilarity, d.MinSimilarity, d.MeanActive)
	}
	if withQueries {
		for _, q := range report.Queries {
			for _, r := range q.Results {
				if !r.Found {
					fmt.Fprintf(w, "query=%s matcher=%s prediction=none\n", q.Label, r.Matcher)
					continue
				}
				fmt.Fprintf(w, "query=%s matcher=%s prediction=%s similarity=%.4f error=%.4f\n",
					q.Label, r.Matcher, r.Label, r.Similarity, r.Error)
			}
		}
	}
	for _, s := range run.Summaries {
		fmt.Fprintf(w, "matcher=%s queries=%d misses=%d exact=%d mae=%.4f std=%.4f similarity=%.4f cosine=%.4f\n",
			s.Matcher, s.Queries, s.Misses, s.ExactMatches, s.MeanAbsError, s.StdAbsError, s.MeanSimilarity, s.Cosine)
	}
	for _, m := range report.Memory {
		fmt.Fprintf(w, "memory=%s labels=%d entries=%s votes=%s\n",
			m.Matcher, len(m.Labels), humanize.Comma(int64(len(m.Entries))), humanize.Comma(int64(len(m.Votes))))
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an export directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			exported, err := client.Export(cmd.Context(), sdrprobe.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id to export")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the newest run")
	cmd.Flags().StringVar(&outDir, "out", "", "export directory (defaults to --exports-dir)")
	return cmd
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop all persisted runs from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset store=%s\n", opts.storeKind)
			return nil
		},
	}
}

func relativeTime(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return strings.ReplaceAll(humanize.Time(t), " ", "_")
}

func formatErrors(byMatcher map[string]float64) string {
	names := make([]string, 0, len(byMatcher))
	for name := range byMatcher {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%.4f", name, byMatcher[name]))
	}
	return strings.Join(parts, ",")
}
