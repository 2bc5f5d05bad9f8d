package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lattice-sim/lattice-sim/sim/analytic"
)

var onlyBenchmarks []string // subset of benchmarks for validate

// validateCmd runs the analytical benchmarks and fails if any exceeds its
// tolerance.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare the solver against analytical solutions",
	Run: func(cmd *cobra.Command, args []string) {
		benchmarks, err := analytic.Select(onlyBenchmarks)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		reports, err := RunBenchmarks(ctx, benchmarks)
		if err != nil {
			logrus.Fatalf("Validation aborted: %v", err)
		}
		failed := 0
		for _, r := range reports {
			fmt.Println(r)
			if !r.Passed() {
				failed++
			}
		}
		if failed > 0 {
			logrus.Fatalf("%d of %d benchmarks exceeded their tolerance", failed, len(reports))
		}
		logrus.Infof("All %d benchmarks passed", len(reports))
	},
}

// RunBenchmarks runs the benchmarks concurrently, one goroutine each. Reports
// come back in input order. The first error cancels the others.
func RunBenchmarks(ctx context.Context, benchmarks []analytic.Benchmark) ([]analytic.Report, error) {
	reports := make([]analytic.Report, len(benchmarks))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range benchmarks {
		g.Go(func() error {
			rep, err := b.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Name(), err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func init() {
	validateCmd.Flags().StringSliceVar(&onlyBenchmarks, "only", nil, "Comma-separated benchmarks to run (diffusion, poiseuille, taylor-green)")
	rootCmd.AddCommand(validateCmd)
}
