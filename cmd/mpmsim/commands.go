package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/export"
	"github.com/san-kum/mpmsim/internal/optim"
	"github.com/san-kum/mpmsim/internal/sim"
	"github.com/san-kum/mpmsim/internal/storage"
	"github.com/san-kum/mpmsim/internal/telemetry"
	"github.com/san-kum/mpmsim/internal/viz"
)

const defaultScene = "jello"

// loadScene resolves the scene from --config or a preset name, then applies
// flag overrides.
func loadScene(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	default:
		name := defaultScene
		if len(args) > 0 {
			name = args[0]
		}
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown scene: %s (available: %v)", name, config.ListPresets())
		}
	}

	if cmd.Flags().Changed("frames") {
		cfg.Frames = frames
	}
	if cmd.Flags().Changed("max-dt") {
		cfg.MaxDt = maxDt
	}
	if cmd.Flags().Changed("cfl") {
		cfg.CFL = cfl
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	perf := telemetry.NewPerfCollector(200)
	exp, err := experiment.Build(cfg, logger, sim.WithProfiler(perf))
	if err != nil {
		return err
	}
	exp.SetFixedDt(fixedDt)

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		exp.AddObserver(telemetry.NewMetrics(reg))
		go func() {
			if err := telemetry.Serve(ctx, metricsAddr, reg, logger); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	run, err := st.Create(cfg, exp.Simulator().Info().Particles)
	if err != nil {
		return err
	}
	logger.Info("recording run", "id", run.ID(), "dir", run.Dir())

	res, runErr := exp.Run(ctx, func(fs experiment.FrameStats) error {
		var pos []r3.Vec
		if dumpEvery > 0 && fs.Frame%dumpEvery == 0 {
			pos = exp.Simulator().Positions()
		}
		if fs.Frame%10 == 0 {
			logger.Info("frame", "frame", fs.Frame, "steps", fs.Steps, "max_velocity", fs.MaxVelocity, "elapsed", fs.Elapsed)
		}
		return run.WriteFrame(fs.Record(), pos)
	})
	if err := run.Close(res.Metrics, res.Elapsed); err != nil {
		return err
	}
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		logger.Warn("run interrupted", "frames", len(res.Frames))
	}

	logger.Info("substep timing", "perf", perf.Stats())

	fmt.Printf("run id: %s\n", run.ID())
	fmt.Printf("frames: %d  particles: %d  elapsed: %v\n", len(res.Frames), res.Particles, res.Elapsed)
	fmt.Println("\nmetrics:")
	for _, name := range sortedNames(res.Metrics) {
		fmt.Printf("  %s: %.6g\n", name, res.Metrics[name])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("frames") {
		cfg.Frames = 1 << 20
	}

	// The TUI owns the terminal, so logs go to a file.
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.Create(filepath.Join(dataDir, "live.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newFileLogger(logFile)

	perf := telemetry.NewPerfCollector(100)
	exp, err := experiment.Build(cfg, logger, sim.WithProfiler(perf))
	if err != nil {
		return err
	}
	exp.SetFixedDt(fixedDt)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p := tea.NewProgram(viz.NewModel(ctx, exp, perf), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func benchScene(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("frames") {
		cfg.Frames = 5
	}

	perf := telemetry.NewPerfCollector(1 << 14)
	exp, err := experiment.Build(cfg, logger, sim.WithProfiler(perf))
	if err != nil {
		return err
	}
	exp.SetFixedDt(fixedDt)

	res, err := exp.Run(cmd.Context(), nil)
	if err != nil {
		return err
	}
	stats := perf.Stats()

	fmt.Printf("benchmarking %s: %d particles, %d frames, %d substeps in %v\n\n",
		cfg.Name, res.Particles, len(res.Frames), stats.Ticks, res.Elapsed)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tAVG\tSHARE")
	for _, phase := range stats.Phases() {
		fmt.Fprintf(w, "%s\t%v\t%.1f%%\n", phase, stats.PhaseAvg[phase], stats.PhasePct[phase])
	}
	fmt.Fprintf(w, "substep\t%v\t%.0f/s\n", stats.AvgTickDuration, stats.TicksPerSecond)
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tSCENE\tMODEL\tTRANSFER\tPARTICLES\tFRAMES\tTIME\tSTATUS")
	for _, run := range runs {
		status := "complete"
		if !run.Complete {
			status = "partial"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.Scene,
			run.Model,
			run.Transfer,
			run.Particles,
			run.Frames,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			status,
		)
	}
	return w.Flush()
}

var plotFields = []string{"kinetic", "elastic", "potential", "total", "max_velocity", "min_dt", "steps", "active_nodes", "min_j", "max_j"}

func fieldSeries(records []storage.FrameRecord, field string) ([]float64, error) {
	data := make([]float64, len(records))
	for i, r := range records {
		switch field {
		case "kinetic":
			data[i] = r.Kinetic
		case "elastic":
			data[i] = r.Elastic
		case "potential":
			data[i] = r.Potential
		case "total":
			data[i] = r.Kinetic + r.Elastic + r.Potential
		case "max_velocity":
			data[i] = r.MaxVelocity
		case "min_dt":
			data[i] = r.MinDt
		case "steps":
			data[i] = float64(r.Steps)
		case "active_nodes":
			data[i] = float64(r.ActiveNodes)
		case "min_j":
			data[i] = r.MinJ
		case "max_j":
			data[i] = r.MaxJ
		default:
			return nil, fmt.Errorf("unknown field: %s (available: %s)", field, strings.Join(plotFields, ", "))
		}
	}
	return data, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadStats(runID)
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("run %s has %d frames, need at least 2 to plot", runID, len(records))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s (%s, %s)\n", meta.Scene, meta.Model, meta.Transfer)
	fmt.Printf("frames: %d\n\n", len(records))

	fields := []string{"kinetic", "elastic", "max_velocity", "min_j"}
	if plotField != "" {
		fields = []string{plotField}
	}
	for _, field := range fields {
		data, err := fieldSeries(records, field)
		if err != nil {
			return err
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(field+" vs frame"),
		))
		fmt.Println()
	}

	if plotSVG != "" {
		data, err := fieldSeries(records, fields[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(plotSVG, []byte(export.SeriesToSVG(data, 800, 300, "#00ff88")), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s plot to %s\n", fields[0], plotSVG)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if exportFrame >= 0 {
		pts, err := st.LoadFrame(runID, exportFrame)
		if err != nil {
			return err
		}
		ext := "csv"
		if exportSVG {
			ext = "svg"
		}
		out := exportOut
		if out == "" {
			out = fmt.Sprintf("%s_frame_%05d.%s", runID, exportFrame, ext)
		}
		if exportSVG {
			cfg, err := st.LoadConfig(runID)
			if err != nil {
				return err
			}
			cam := viz.NewCamera()
			svg := export.ParticlesToSVG(pts, cfg.World.R3(), cam, 800, 800)
			if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
				return err
			}
		} else if err := storage.ExportFrame(out, pts); err != nil {
			return err
		}
		fmt.Printf("wrote %d particles to %s\n", len(pts), out)
		return nil
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := config.ListPresets()
	if len(args) > 0 {
		names = args[:1]
	}
	if len(args) > 0 || showYAML {
		for _, name := range names {
			cfg := config.GetPreset(name)
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n%s\n", name, data)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tTRANSFER\tPLASTICITY\tOBJECTS\tFRAMES")
	for _, name := range names {
		cfg := config.GetPreset(name)
		plast := cfg.Plasticity.Type
		if plast == "" {
			plast = "none"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", name, cfg.Model, cfg.Transfer, plast, len(cfg.Objects), cfg.Frames)
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	fmt.Println("constitutive models:")
	for _, name := range reg.ListModels() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("plasticity:")
	for _, name := range reg.ListPlasticity() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("transfer schemes:")
	for _, t := range []sim.TransferScheme{sim.APIC, sim.FLIP95, sim.FLIP99} {
		fmt.Printf("  %s\n", t)
	}
	return nil
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sweepScene(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	params := make([]optim.Param, 0, len(sweepParams))
	for _, s := range sweepParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	g := optim.NewGridSearch(logger, params...)
	best, trials, err := g.Search(ctx, cfg, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(params)+1)
	for _, p := range params {
		header = append(header, strings.ToUpper(p.Name))
	}
	fmt.Fprintln(w, strings.Join(append(header, strings.ToUpper(sweepMetric)), "\t"))
	for _, t := range trials {
		row := make([]string, 0, len(params)+1)
		for _, p := range params {
			row = append(row, fmt.Sprintf("%g", t.Params[p.Name]))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, fmt.Sprintf("%.6g", t.Value))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6g at %v\n", sweepMetric, best.Value, best.Params)
	return nil
}
