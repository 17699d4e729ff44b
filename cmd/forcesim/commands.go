package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/experiment"
	"github.com/san-kum/forcesim/internal/sim"
	"github.com/san-kum/forcesim/internal/storage"
	"github.com/san-kum/forcesim/internal/stream"
	"github.com/san-kum/forcesim/internal/viz"
)

const maxPlottedBodies = 4

func runSimulation(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	cfg := experiment.Config{
		Scene:         scene,
		Integrator:    dynamo.IntegratorKind(integrator),
		Dt:            dt,
		Duration:      duration,
		RecordEvery:   recordEvery,
		ValidateState: validate,
	}
	if cmd.Flags().Changed("seed") || scene.Seed == 0 {
		cfg.Seed = seed
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(cfg, engine.WithLogger(logger))
	if err := exp.Setup(experiment.DefaultMetrics()); err != nil {
		return err
	}
	params := exp.Params()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running scene", "scene", params.Scene, "integrator", params.Integrator, "dt", params.Dt, "duration", params.Duration)
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		logger.Warn("run stopped early", "err", e)
	}

	runID, err := st.Save(params, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("energy drift: %.6f\n", result.EnergyDrift)
	fmt.Println("\nmetrics:")
	for name, val := range result.Metrics {
		fmt.Printf("  %s: %.6f\n", name, val)
	}

	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tINTEG\tBODIES\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.2e\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			len(run.Bodies),
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
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

	if len(frames) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(frames))

	energy := make([]float64, len(frames))
	for i, f := range frames {
		energy[i] = f.Metrics.TotalEnergy
	}
	fmt.Println(asciigraph.Plot(energy,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("total energy"),
	))
	fmt.Println()

	ids := meta.Bodies
	if len(ids) > maxPlottedBodies {
		ids = ids[:maxPlottedBodies]
	}
	for _, id := range ids {
		ys := make([]float64, 0, len(frames))
		for _, f := range frames {
			for _, b := range f.Bodies {
				if b.ID == id {
					ys = append(ys, b.Position.Y)
					break
				}
			}
		}
		if len(ys) == 0 {
			continue
		}

		fmt.Println(asciigraph.Plot(ys,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(id+" y position"),
		))
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
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

	result := &sim.Result{
		Frames:      frames,
		Times:       make([]float64, len(frames)),
		Metrics:     meta.Metrics,
		StepsTaken:  meta.StepsTaken,
		EnergyDrift: meta.EnergyDrift,
	}
	for i, f := range frames {
		result.Times[i] = f.Time
	}

	params := storage.RunParams{
		Scene:      meta.Scene,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Duration:   meta.Duration,
		Seed:       meta.Seed,
	}
	return storage.ExportJSON(os.Stdout, params, result)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	frames, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}

	if len(frames) == 0 {
		return fmt.Errorf("no data to export")
	}

	return storage.WriteCSV(os.Stdout, frames)
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args[:1])
	if err != nil {
		return err
	}

	kinds := []dynamo.IntegratorKind{dynamo.IntegratorEuler, dynamo.IntegratorVerlet, dynamo.IntegratorRK4}
	if len(args) > 1 {
		kinds = kinds[:0]
		for _, name := range args[1:] {
			kinds = append(kinds, dynamo.IntegratorKind(name))
		}
	}

	cfg := experiment.Config{Scene: scene, Dt: dt, Duration: duration}
	out, err := experiment.Compare(cmd.Context(), cfg, kinds)
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s\n\n", scene.Name)
	fmt.Printf("%-12s  %-12s  %-12s  %-12s  %-12s\n", "integrator", "energy_drift", "stability", "contacts", "time_ms")
	fmt.Println(strings.Repeat("-", 68))

	for _, c := range out {
		r := c.Result
		fmt.Printf("%-12s  %12.2e  %12.4f  %12.4f  %12.2f\n",
			c.Integrator,
			r.EnergyDrift,
			r.Metrics["stability"],
			r.Metrics["contact_rate"],
			float64(r.Elapsed.Microseconds())/1000,
		)
	}

	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	durations := []float64{1.0, 5.0, 10.0}
	dts := []float64{1.0 / 240, 1.0 / 120, 1.0 / 60}

	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s (%d bodies)\n\n", scene.Name, len(scene.Bodies))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tSTEPS\tTIME\tSTEPS/SEC\tCONTACTS/STEP")

	for _, dur := range durations {
		for _, step := range dts {
			exp := experiment.New(experiment.Config{Scene: scene, Dt: step, Duration: dur, RecordEvery: 1 << 30})
			if err := exp.Setup(experiment.DefaultMetrics()); err != nil {
				return err
			}

			result, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}

			stepsPerSec := float64(result.StepsTaken) / result.Elapsed.Seconds()
			fmt.Fprintf(w, "%.1fs\t%.4fs\t%d\t%v\t%.0f\t%.2f\n",
				dur, step, result.StepsTaken, result.Elapsed, stepsPerSec, result.Metrics["contact_rate"])
		}
	}

	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	if !slices.Contains(viz.ThemeNames(), theme) {
		return fmt.Errorf("unknown theme %q (available: %s)", theme, strings.Join(viz.ThemeNames(), ", "))
	}
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	// the dashboard owns the terminal, so engine warnings are dropped
	rebuild := func() (*engine.Engine, error) {
		return scene.Build()
	}
	eng, err := rebuild()
	if err != nil {
		return err
	}

	return viz.Run(eng, scene.Name, theme, rebuild)
}

func serveScene(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	eng, err := scene.Build(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := stream.NewHub(eng, stream.HubConfig{Logger: logger, EngineOptions: opts})
	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "scene", scene.Name)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-hubDone
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	<-hubDone
	logger.Info("server stopped")
	return nil
}
