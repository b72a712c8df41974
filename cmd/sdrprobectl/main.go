package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sdrprobe/internal/storage"
	"sdrprobe/pkg/sdrprobe"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type globalOptions struct {
	storeKind     string
	dbPath        string
	benchmarksDir string
	exportsDir    string
	logLevel      string
	logOut        io.Writer
}

func (g *globalOptions) client() (*sdrprobe.Client, error) {
	logger, err := newLogger(g.logLevel, g.logOut)
	if err != nil {
		return nil, err
	}
	return sdrprobe.New(sdrprobe.Options{
		StoreKind:     g.storeKind,
		DBPath:        g.dbPath,
		BenchmarksDir: g.benchmarksDir,
		ExportsDir:    g.exportsDir,
		Logger:        logger,
	})
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	opts := &globalOptions{logOut: logOut}
	root := &cobra.Command{
		Use:   "sdrprobectl",
		Short: "Probe how well sparse codes can be mapped back to their inputs",
		Long: `sdrprobectl trains a sparse coder on a set of scalar inputs until its
output stabilizes, teaches the resulting codes to KNN and HTM pattern
memories, and reports how accurately each memory reconstructs the inputs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.storeKind, "store", storage.KindBolt, "store backend: bolt|sqlite|memory (memory does not outlive the process)")
	flags.StringVar(&opts.dbPath, "db-path", "sdrprobe.db", "database path for bolt and sqlite stores")
	flags.StringVar(&opts.benchmarksDir, "benchmarks-dir", benchmarksDir, "directory holding run artifacts")
	flags.StringVar(&opts.exportsDir, "exports-dir", exportsDir, "default export directory")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	root.AddCommand(
		newRunCmd(opts),
		newRunsCmd(opts),
		newReportCmd(opts),
		newExportCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = io.Discard
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
