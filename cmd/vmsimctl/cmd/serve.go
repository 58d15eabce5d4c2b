package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/monitor"
	"github.com/sarchlab/vmemsim/simulator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a simulation and serve its results over HTTP for live inspection.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&workDir, "dir", ".", "directory holding environment.json and processes.json")
	serveCmd.Flags().Int64Var(&seed, "seed", 1, "deterministic RNG seed")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (0 picks a free port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	m := monitor.New(driver, descriptors).WithPortNumber(servePort)
	addr, err := m.StartServer()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "serving results at %s (routes: /api/result, /api/run, /api/resource, /api/profile)\n", addr)
	select {}
}
