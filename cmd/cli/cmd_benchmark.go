package main

import (
	"errors"
	"fmt"
	"time"

	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/reference"

	"github.com/spf13/cobra"
)

func newBenchmarkCmd(g *globalFlags) *cobra.Command {
	var (
		casePath    string
		volumeSteps int
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare the decomposition with the monolithic LP and the volume-grid DP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(casePath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %-16s %-12s %s\n", "method", "cost", "elapsed", "note")

			started := time.Now()
			out, err := pddd.Solve(ctx, c, pddd.Options{Logger: g.logger()})
			if err != nil {
				return fmt.Errorf("decomposition: %w", err)
			}
			note := fmt.Sprintf("%d iterations, %d cuts", out.Iterations, len(out.Cuts))
			if !out.Converged {
				note += ", not converged"
			}
			n := len(out.Bounds.ZSUP)
			fmt.Fprintf(w, "%-12s %-16.4f %-12s %s\n", "pddd", out.Bounds.ZSUP[n-1], time.Since(started).Round(time.Microsecond), note)

			mono, err := reference.SolveMonolithic(ctx, c, nil)
			if err != nil {
				return fmt.Errorf("monolithic: %w", err)
			}
			fmt.Fprintf(w, "%-12s %-16.4f %-12s %s\n", "monolithic", mono.Cost, mono.Elapsed.Round(time.Microsecond), "deterministic equivalent")

			started = time.Now()
			dp, err := reference.SolveDP(c, reference.DPParams{VolumeSteps: volumeSteps})
			switch {
			case errors.Is(err, reference.ErrUnsupported):
				fmt.Fprintf(w, "%-12s %-16s %-12s %v\n", "dp", "n/a", "-", err)
			case err != nil:
				return fmt.Errorf("dp: %w", err)
			default:
				fmt.Fprintf(w, "%-12s %-16.4f %-12s %d volume steps\n", "dp", dp.Cost, time.Since(started).Round(time.Microsecond), volumeSteps)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&casePath, "case", "", "Path to the YAML case file")
	cmd.Flags().IntVar(&volumeSteps, "volume-steps", 200, "Volume grid intervals for the DP benchmark")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
