package main

import (
	"fmt"
	"io"

	"hydro-dispatch/internal/analysis"
	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/report"

	"github.com/spf13/cobra"
)

type solveFlags struct {
	casePath string
	maxIter  int
	tol      float64
	outDir   string
	quiet    bool
}

func newSolveCmd(g *globalFlags) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a case and write its CSV artifacts",
		Example: `  hydro solve --case examples/cases/system.yaml --out results/system
  hydro solve --case examples/cases/toy.yaml --max-iter 20 --quiet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, g, f)
		},
	}
	cmd.Flags().StringVar(&f.casePath, "case", "", "Path to the YAML case file")
	cmd.Flags().IntVar(&f.maxIter, "max-iter", pddd.DefaultMaxIter, "Iteration limit")
	cmd.Flags().Float64Var(&f.tol, "tol", pddd.DefaultTol, "Convergence tolerance on |ZSUP-ZINF|")
	cmd.Flags().StringVar(&f.outDir, "out", "results", "Output directory for the CSV files")
	cmd.Flags().BoolVar(&f.quiet, "quiet", false, "Do not log every iteration")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func runSolve(cmd *cobra.Command, g *globalFlags, f *solveFlags) error {
	c, err := config.Load(f.casePath)
	if err != nil {
		return err
	}
	out, err := pddd.Solve(cmd.Context(), c, pddd.Options{
		MaxIter: f.maxIter,
		Tol:     f.tol,
		Verbose: !f.quiet,
		Logger:  g.logger(),
	})
	if err != nil {
		return err
	}
	rep, err := report.Build(out)
	if err != nil {
		return err
	}
	if err := report.WriteFiles(f.outDir, out, rep); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printOutcome(w, out, rep)
	fmt.Fprintf(w, "Wrote %d dispatch rows to %s\n", len(rep.Ledger), f.outDir)
	return nil
}

func printOutcome(w io.Writer, out *pddd.Outcome, rep *report.Report) {
	status := "converged"
	if !out.Converged {
		status = "iteration limit reached"
	}
	n := len(out.Bounds.ZINF)
	fmt.Fprintf(w, "Case %s: %s after %d iterations\n", out.Case.Meta.Name, status, out.Iterations)
	fmt.Fprintf(w, "ZINF=%.4f ZSUP=%.4f gap=%.6f cuts=%d\n",
		out.Bounds.ZINF[n-1], out.Bounds.ZSUP[n-1], out.Bounds.Gap(), len(out.Cuts))
	fmt.Fprintf(w, "Total operating cost=$%.2f\n", rep.TotalCost)

	cmo := analysis.SummarizeCMO(out.Final, out.Case.Meta.PeriodHours)
	fmt.Fprintf(w, "CMO $/MWh min=%.2f mean=%.2f max=%.2f\n", cmo.Min, cmo.Mean, cmo.Max)

	ranked := analysis.RankByStoredValue(out.Final, out.Case)
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintf(w, "%-4s %-14s %-10s %-12s %-12s\n", "rank", "unit", "tech", "mean value", "stored $")
	for i, r := range ranked {
		fmt.Fprintf(w, "%-4d %-14s %-10s %-12.2f %-12.2f\n", i+1, r.Unit, r.Technology, r.Mean, r.StoredValue)
	}
}

func newValidateCmd() *cobra.Command {
	var casePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a case without solving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(casePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (horizon %d, %d hydro, %d thermal, %d renewable, %d storage)\n",
				c.Meta.Name, c.Meta.Horizon,
				len(c.HydroUnits()), len(c.ThermalUnits()), len(c.RenewableUnits()), len(c.StorageUnits()))
			return nil
		},
	}
	cmd.Flags().StringVar(&casePath, "case", "", "Path to the YAML case file")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
