package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lattice-sim/lattice-sim/sim"
	"github.com/lattice-sim/lattice-sim/sim/checkpoint"
	"github.com/lattice-sim/lattice-sim/sim/output"
	"github.com/lattice-sim/lattice-sim/sim/telemetry"
)

var (
	// CLI flags for a run
	configPath    string // Scenario YAML
	outputDir     string // Directory for VTK files
	writeVTK      bool   // Write one VTK file per sample
	sqlitePath    string // SQLite database for samples, empty disables
	checkpointDir string // Badger directory for checkpoints, empty disables
	resume        bool   // Resume from the latest checkpoint of the scenario
	metricsFile   string // Prometheus textfile written at the end of the run
	logLevel      string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lattice-sim",
	Short: "Lattice Boltzmann solver for coupled flow and scalar transport",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := LoadEnv()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("log") && e.LogLevel != "" {
			logLevel = e.LogLevel
		}
		if !cmd.Flags().Changed("output-dir") && e.OutputDir != "" {
			outputDir = e.OutputDir
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// RunOptions selects the outputs of one scenario run.
type RunOptions struct {
	OutputDir     string
	VTK           bool
	SQLitePath    string
	CheckpointDir string
	Resume        bool
	MetricsFile   string
}

// runCmd executes a scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		if configPath == "" {
			logrus.Fatalf("Scenario file not provided (--config). Exiting simulation.")
		}
		sc, err := LoadScenario(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := RunScenario(ctx, sc, RunOptions{
			OutputDir:     outputDir,
			VTK:           writeVTK,
			SQLitePath:    sqlitePath,
			CheckpointDir: checkpointDir,
			Resume:        resume,
			MetricsFile:   metricsFile,
		})
		if s != nil {
			s.Metrics.Print()
		}
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// RunScenario builds the scenario, wires the requested outputs and runs it to
// completion. The simulator is returned whenever it was built, so that
// metrics of an interrupted run can still be reported.
func RunScenario(ctx context.Context, sc *Scenario, opts RunOptions) (s *sim.Simulator, err error) {
	s, err = sc.Build()
	if err != nil {
		return nil, err
	}

	var writers []sim.ResultWriter
	if opts.VTK {
		w, err := output.NewVTKWriter(filepath.Join(opts.OutputDir, "vtk"), sc.Name, sc.Lattice.Dx)
		if err != nil {
			return s, err
		}
		writers = append(writers, w)
	}
	if opts.SQLitePath != "" {
		w, err := output.OpenSQLite(ctx, opts.SQLitePath, output.RunInfo{
			Name: sc.Name, Rows: sc.Lattice.Rows, Cols: sc.Lattice.Cols, Dx: sc.Lattice.Dx, Dt: sc.Lattice.Dt,
		})
		if err != nil {
			return s, err
		}
		logrus.Infof("Recording samples of run %s to %s", w.RunID(), opts.SQLitePath)
		writers = append(writers, w)
	}
	if mw := output.Multi(writers...); mw.Len() > 0 {
		if sc.Output.SampleEvery == 0 {
			logrus.Warnf("Outputs requested but output.sample_every is 0; nothing will be written")
		}
		s.SetResultWriter(mw)
		defer func() {
			if cerr := mw.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	var recorder *checkpoint.Recorder
	if opts.CheckpointDir != "" {
		store, err := checkpoint.Open(checkpoint.Config{Path: opts.CheckpointDir, Keep: sc.Output.KeepCheckpoints})
		if err != nil {
			return s, err
		}
		defer store.Close()
		if opts.Resume {
			found, err := checkpoint.Resume(store, sc.Name, s)
			if err != nil {
				return s, err
			}
			if !found {
				logrus.Infof("No checkpoint for %s; starting from step 0", sc.Name)
			}
		}
		recorder = checkpoint.NewRecorder(store, sc.Name, s, sc.Output.CheckpointEvery)
	}

	var metrics *telemetry.Observer
	if opts.MetricsFile != "" {
		metrics, err = telemetry.NewObserver(telemetry.Config{RunLabel: sc.Name})
		if err != nil {
			return s, err
		}
		s.AddObserver(metrics)
	}

	if err := s.Run(ctx); err != nil {
		return s, err
	}
	if recorder != nil && recorder.Err() != nil {
		return s, fmt.Errorf("checkpointing: %w", recorder.Err())
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic); env LATTICE_SIM_LOG")

	runCmd.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "out", "Directory for VTK output; env LATTICE_SIM_OUTPUT_DIR")
	runCmd.Flags().BoolVar(&writeVTK, "vtk", false, "Write a legacy VTK file per sample")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database to record samples into")
	runCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory of the checkpoint store")
	runCmd.Flags().BoolVar(&resume, "resume", false, "Resume from the latest checkpoint of the scenario")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile at the end")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
