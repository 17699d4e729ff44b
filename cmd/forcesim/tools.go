package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/forcesim/internal/analysis"
	"github.com/san-kum/forcesim/internal/automation"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/experiment"
	"github.com/san-kum/forcesim/internal/optim"
	"github.com/san-kum/forcesim/internal/storage"
)

var (
	bodyID    string
	axis      string
	param     string
	paramMin  float64
	paramMax  float64
	numSteps  int
	trials    int
	jitter    float64
	mcSeed    int64
	epsilon   float64
	gridSpecs []string
	metric    string
)

func addToolCommands(rootCmd *cobra.Command) {
	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&bodyID, "body", "", "analyze this body's y position instead of total energy")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id] [body]",
		Short: "phase portrait of one body",
		Args:  cobra.ExactArgs(2),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&axis, "axis", "x", "axis (x or y)")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [preset]",
		Short: "estimate the largest Lyapunov exponent of a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  lyapunovScene,
	}
	lyapunovCmd.Flags().Float64Var(&dt, "dt", 0, "timestep (default: scene time step)")
	lyapunovCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")
	lyapunovCmd.Flags().Float64Var(&epsilon, "perturb", analysis.DefaultPerturbation, "initial separation")
	lyapunovCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "sweep one engine parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&param, "param", "restitution", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&paramMin, "min", 0.1, "first value")
	sweepCmd.Flags().Float64Var(&paramMax, "max", 1.0, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "steps", 10, "number of values")
	sweepCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")
	sweepCmd.Flags().StringVar(&integrator, "integrator", "", "integrator override")
	sweepCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run jittered copies of a scene and count stable outcomes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	monteCarloCmd.Flags().IntVar(&trials, "trials", 32, "number of trials")
	monteCarloCmd.Flags().Float64Var(&jitter, "perturb", 5, "maximum start offset per axis")
	monteCarloCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")
	monteCarloCmd.Flags().Int64Var(&mcSeed, "seed", 1, "random seed")
	monteCarloCmd.Flags().StringVar(&integrator, "integrator", "", "integrator override")
	monteCarloCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid search engine parameters for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	tuneCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "energy_drift", "metric to minimize")
	tuneCmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds (default: scene duration)")
	tuneCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")

	rootCmd.AddCommand(analyzeCmd, phaseCmd, lyapunovCmd, batchCmd, sweepCmd, monteCarloCmd, tuneCmd)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) < 2 {
		return fmt.Errorf("no data")
	}

	caption := "total energy"
	data := make([]float64, 0, len(frames))
	if bodyID == "" {
		for _, f := range frames {
			data = append(data, f.Metrics.TotalEnergy)
		}
	} else {
		caption = bodyID + " y position"
		for _, p := range analysis.BodyPhase(frames, bodyID, analysis.AxisY) {
			data = append(data, p.X)
		}
		if len(data) < 2 {
			return fmt.Errorf("body %q not found in run %s", bodyID, runID)
		}
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s\n\n", meta.Scene)

	ps := analysis.PowerSpectrum(data)
	plotData := ps[:max(len(ps)/4, 1)]
	fmt.Println(asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+caption+")"),
	))
	fmt.Println()

	sampleDt := frames[1].Time - frames[0].Time
	freq, _ := analysis.DominantFrequency(data, sampleDt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID, id := args[0], args[1]

	st := storage.New(dataDir)
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}

	ax := analysis.Axis(axis)
	if ax != analysis.AxisX && ax != analysis.AxisY {
		return fmt.Errorf("invalid axis %q (use x or y)", axis)
	}

	points := analysis.BodyPhase(frames, id, ax)
	if len(points) == 0 {
		return fmt.Errorf("body %q not found in run %s", id, runID)
	}

	fmt.Printf("phase portrait: %s (%s vs v%s)\n\n", id, axis, axis)
	fmt.Print(analysis.PortraitASCII(points, 70, 25))
	return nil
}

func lyapunovScene(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	step := dt
	if step <= 0 {
		step = dynamo.DefaultConfig().Apply(scene.Engine).TimeStep
	}
	dur := duration
	if dur <= 0 {
		dur = scene.Duration
	}

	build := func() (*engine.Engine, error) { return scene.Build() }
	lambda, err := analysis.LyapunovExponent(build, analysis.LyapunovConfig{Dt: step, Duration: dur, Perturbation: epsilon})
	if err != nil {
		return err
	}

	fmt.Printf("scene: %s\n", scene.Name)
	fmt.Printf("largest lyapunov exponent: %.6f\n", lambda)
	if lambda > 0 {
		fmt.Println("nearby trajectories diverge (chaotic)")
	} else {
		fmt.Println("nearby trajectories stay together")
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	runner := automation.Runner{Logger: logger, Options: []engine.Option{engine.WithLogger(logger)}}
	results, runErr := runner.RunScenario(cmd.Context(), scenario)

	for _, r := range results {
		id, err := st.Save(r.Params, r.Result)
		if err != nil {
			return err
		}
		fmt.Printf("%s\tsteps=%d\tdrift=%.2e\n", id, r.Result.StepsTaken, r.Result.EnergyDrift)
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	runner := automation.Runner{Logger: logger}
	results, err := runner.RunSweep(cmd.Context(), automation.ParameterSweep{
		Scene:      scene,
		Integrator: dynamo.IntegratorKind(integrator),
		Param:      param,
		Min:        paramMin,
		Max:        paramMax,
		NumSteps:   numSteps,
		Duration:   duration,
	})
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %s on %s\n\n", param, scene.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(param)+"\tDRIFT\tMIN E\tMAX E\tSTABILITY\tCONTACTS/STEP")
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%.2e\t%.3f\t%.3f\t%.3f\t%.2f\n",
			r.Value, r.EnergyDrift, r.MinEnergy, r.MaxEnergy, r.Stability, r.Contacts)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	runner := automation.Runner{Logger: logger}
	results, err := runner.RunMonteCarlo(cmd.Context(), automation.MonteCarloConfig{
		Scene:        scene,
		Integrator:   dynamo.IntegratorKind(integrator),
		Perturbation: jitter,
		NumTrials:    trials,
		Duration:     duration,
		Seed:         mcSeed,
	})
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	worst := 0.0
	for _, r := range results {
		worst = max(worst, r.EnergyDrift)
	}

	fmt.Printf("scene: %s\n", scene.Name)
	fmt.Printf("trials: %d (stable %d, unstable %d)\n", len(results), stable, unstable)
	fmt.Printf("worst energy drift: %.2e\n", worst)
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	if len(gridSpecs) == 0 {
		return fmt.Errorf("at least one --grid is required")
	}

	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(gridSpecs))
	ranges := make([][]float64, 0, len(gridSpecs))
	for _, spec := range gridSpecs {
		name, values, err := parseGrid(spec)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	g := optim.NewGridSearch(names, ranges)
	best, val, err := g.Search(cmd.Context(), experiment.Config{Scene: scene, Duration: duration}, metric)
	if err != nil {
		return err
	}

	fmt.Printf("best %s: %.6g\n", metric, val)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, best[name])
	}
	return nil
}

// parseGrid reads "name=v1,v2,...".
func parseGrid(spec string) (string, []float64, error) {
	name, list, ok := strings.Cut(spec, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("invalid grid %q (want name=v1,v2,...)", spec)
	}

	parts := strings.Split(list, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid grid %q: %w", spec, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}
