package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/forcesim/internal/config"
	"github.com/san-kum/forcesim/internal/integrators"
	"github.com/san-kum/forcesim/internal/viz"
)

var (
	dataDir  string
	logLevel string

	dt          float64
	duration    float64
	seed        int64
	integrator  string
	recordEvery int
	validate    bool
	configFile  string

	addr  string
	theme string

	logger *log.Logger
)

// main registers the commands and flags and exits with status 1 when a
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:   "forcesim",
		Short: "force-directed 2D physics lab",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".forcesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scene headlessly and store the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep (default: scene time step)")
	runCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed recorded with the run")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "integrator override (euler, verlet, rk4)")
	runCmd.Flags().IntVar(&recordEvery, "record-every", 1, "keep one frame every n steps")
	runCmd.Flags().BoolVar(&validate, "validate", true, "stop when a body state turns NaN or Inf")
	runCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run frames to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [preset] [integrators...]",
		Short: "compare integrators on one scene",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	compareCmd.Flags().Float64Var(&dt, "dt", 0, "timestep (default: scene time step)")
	compareCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "benchmark a scene across time steps",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScene,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available preset scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("available presets:")
			for _, name := range config.ListPresets() {
				scene, err := config.GetPreset(name)
				if err != nil {
					return err
				}
				fmt.Printf("  %-16s %s\n", name, scene.Description)
			}
			fmt.Printf("\nintegrators: %v\n", integrators.Names())
			return nil
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scene with the terminal dashboard",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")
	liveCmd.Flags().StringVar(&theme, "theme", viz.ThemeNames()[0], "dashboard theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	serveCmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "stream a scene to websocket clients",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serveScene,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd, compareCmd, benchCmd, presetsCmd, liveCmd, serveCmd)
	addToolCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           level,
		Prefix:          "forcesim",
	})
	return nil
}

// loadScene resolves a scene from --config or a preset name, in that order.
// With neither it falls back to the billiards preset.
func loadScene(args []string) (*config.Scene, error) {
	if configFile != "" {
		scene, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene: %w", err)
		}
		return scene, nil
	}

	name := "billiards"
	if len(args) > 0 {
		name = args[0]
	}
	scene, err := config.GetPreset(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, config.ListPresets())
	}
	return scene, nil
}
