package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/monitor"
	"github.com/sarchlab/vmemsim/simulator"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Run a simulation, serve its results, and open the result endpoint in a browser.",
	RunE:  runView,
}

func init() {
	viewCmd.Flags().StringVar(&workDir, "dir", ".", "directory holding environment.json and processes.json")
	viewCmd.Flags().Int64Var(&seed, "seed", 1, "deterministic RNG seed")
	viewCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (0 picks a free port)")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, _ []string) error {
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

	resultURL := addr + "/api/result"
	fmt.Fprintf(cmd.OutOrStdout(), "opening %s\n", resultURL)
	if err := browser.OpenURL(resultURL); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "could not open a browser automatically: %v\n", err)
	}

	select {}
}
