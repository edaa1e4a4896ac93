package main

import (
	"fmt"
	"log/slog"
	"os"

	"hydro-dispatch/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func (g *globalFlags) logger() *slog.Logger {
	return logging.New(g.logLevel, g.logFormat, os.Stderr)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "hydro",
		Short: "Hydrothermal dispatch by nested Benders decomposition",
		Long: `hydro solves multi-stage hydrothermal dispatch cases with dual dynamic
programming and writes the dispatch, cost-to-go series, bounds and cuts as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "text or json")

	root.AddCommand(
		newSolveCmd(g),
		newValidateCmd(),
		newBenchmarkCmd(g),
	)
	return root
}
