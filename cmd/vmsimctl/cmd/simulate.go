package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/record"
	"github.com/sarchlab/vmemsim/simulator"
)

var (
	workDir      string
	seed         int64
	traceFormat  string
	tracePath    string
	resultsDBPath string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Load an environment and process descriptor file and run one simulation.",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&workDir, "dir", ".", "directory holding environment.json and processes.json")
	simulateCmd.Flags().Int64Var(&seed, "seed", 1, "deterministic RNG seed")
	simulateCmd.Flags().StringVar(&traceFormat, "trace", "none", "access trace backend: none, csv, sqlite")
	simulateCmd.Flags().StringVar(&tracePath, "trace-path", "access_trace", "path (without extension) for the access trace output")
	simulateCmd.Flags().StringVar(&resultsDBPath, "results-db", "", "if set, also persist the result document to this SQLite database")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	paths := config.DefaultPaths(workDir)

	env, err := config.LoadEnvironmentFile(paths.Environment)
	if err != nil {
		return err
	}
	resolved, err := env.Resolve()
	if err != nil {
		return err
	}

	descriptors, err := config.LoadProcessesFile(paths.Processes)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "vmsimctl: ", log.LstdFlags)
	driver := simulator.New(resolved, seed, logger)

	recorder, err := buildRecorder()
	if err != nil {
		return err
	}
	if err := recorder.Init(); err != nil {
		return err
	}
	driver.Recorder = recorder
	defer recorder.Close()

	result := driver.RunWithTimeout(context.Background(), descriptors, simulator.DefaultDeadline)

	document, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(paths.Results, document, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote result to %s (status=%s)\n", paths.Results, result.Status)

	if resultsDBPath != "" {
		store, err := record.OpenResultStore(resultsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.Save(time.Now().UTC().Format(time.RFC3339), document)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored result as run %s in %s\n", runID, resultsDBPath)
	}

	if result.Status != "ok" {
		return fmt.Errorf("vmsimctl: simulation ended with status %s: %s", result.Status, result.Error)
	}
	return nil
}

func buildRecorder() (record.AccessRecorder, error) {
	switch traceFormat {
	case "none", "":
		return record.NopRecorder{}, nil
	case "csv":
		return record.NewCSVAccessRecorder(tracePath+".csv", 1000), nil
	case "sqlite":
		return record.NewSQLiteAccessRecorder(tracePath + ".db"), nil
	default:
		return nil, fmt.Errorf("vmsimctl: unrecognized trace backend %q", traceFormat)
	}
}
