package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sdrprobe/pkg/sdrprobe"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		configPath string
		jsonOut    bool
		flagReq    sdrprobe.RunRequest
		inputs     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train a coder, teach the matchers and evaluate reconstruction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := loadOrDefaultRunRequest(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("inputs") {
				values, err := parseInputs(inputs)
				if err != nil {
					return err
				}
				flagReq.Inputs = values
			}
			overrideFromFlags(&req, flagReq, cmd.Flags().Changed)

			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runJSON(summary))
			}
			printRunSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "JSON run config; flags override its values")
	f.BoolVar(&jsonOut, "json", false, "emit the run summary as JSON")
	f.StringVar(&inputs, "inputs", "", "comma separated input values (overrides min/max/step)")
	f.Float64Var(&flagReq.MinVal, "min", 0, "encoder minimum value")
	f.Float64Var(&flagReq.MaxVal, "max", 4, "encoder maximum value")
	f.Float64Var(&flagReq.Step, "step", 1, "step between generated inputs")
	f.IntVar(&flagReq.EncoderWidth, "n", 200, "encoder width in bits")
	f.IntVar(&flagReq.EncoderActive, "w", 15, "encoder active bits")
	f.Float64Var(&flagReq.Noise, "noise", 0, "fraction of active bits moved at query time")
	f.StringVar(&flagReq.Coder, "coder", "pooler", "sparse coder: pooler|identity")
	f.IntVar(&flagReq.Columns, "columns", 1024, "pooler column count")
	f.IntVar(&flagReq.ActiveColumns, "active", 20, "pooler active columns per input")
	f.Float64Var(&flagReq.PotentialPct, "potential", 0.5, "fraction of input bits each column can connect to")
	f.IntVar(&flagReq.CoderStable, "coder-stable", 3, "presentations a pattern must repeat before the coder reports stable")
	f.IntVar(&flagReq.MaxCycles, "max-cycles", 1000, "hard training cycle budget")
	f.IntVar(&flagReq.StableThreshold, "stable-threshold", 5, "consecutive stable cycles required to stop")
	f.StringSliceVar(&flagReq.Matchers, "matchers", []string{"knn", "htm"}, "matchers to evaluate")
	f.IntVar(&flagReq.KNNNeighbours, "knn-k", 0, "limit KNN predictions to k labels (0 keeps all)")
	f.BoolVar(&flagReq.ShuffleQueries, "shuffle", false, "shuffle query order")
	f.Int64Var(&flagReq.Seed, "seed", 1, "random seed")
	return cmd
}

func printRunSummary(w io.Writer, summary sdrprobe.RunSummary) {
	fmt.Fprintf(w, "run_id=%s inputs=%d coder=%s cycles=%s stable_cycles=%d converged=%t reason=%s elapsed=%s\n",
		summary.RunID,
		len(summary.Config.Inputs),
		summary.Config.Coder,
		humanize.Comma(int64(summary.Training.Cycles)),
		summary.Training.StableCycles,
		summary.Training.Converged,
		summary.Training.Reason,
		summary.Elapsed.Round(time.Millisecond),
	)
	for _, s := range summary.Summaries {
		fmt.Fprintf(w, "matcher=%s queries=%d found=%d misses=%d exact=%d mae=%.4f std=%.4f max=%.4f similarity=%.4f cosine=%.4f\n",
			s.Matcher, s.Queries, s.Found, s.Misses, s.ExactMatches, s.MeanAbsError, s.StdAbsError, s.MaxAbsError, s.MeanSimilarity, s.Cosine)
	}
	fmt.Fprintf(w, "artifacts=%s\n", summary.ArtifactsDir)
}

func runJSON(summary sdrprobe.RunSummary) any {
	return map[string]any{
		"run_id":         summary.RunID,
		"artifacts_dir":  summary.ArtifactsDir,
		"created_at_utc": summary.CreatedAtUTC,
		"elapsed_ms":     summary.Elapsed.Milliseconds(),
		"config":         summary.Config,
		"training":       summary.Training,
		"summaries":      summary.Summaries,
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
