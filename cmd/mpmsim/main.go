package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	dataDir     string
	logFormat   string
	verbose     bool
	configFile  string
	frames      int
	fixedDt     float64
	maxDt       float64
	cfl         float64
	workers     int
	metricsAddr string
	dumpEvery   int
	plotField   string
	exportFrame int
	exportOut   string
	exportSVG   bool
	plotSVG     string
	showYAML    bool
	sweepParams []string
	sweepMetric string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mpmsim",
		Short:         "material point method simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mpmsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and record it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSceneFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	runCmd.Flags().IntVar(&dumpEvery, "dump-every", 1, "write particle positions every N frames (0 disables)")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "time substep stages",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScene,
	}
	addSceneFlags(benchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot per-frame statistics of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotField, "field", "", "plot a single field ("+strings.Join(plotFields, ", ")+")")
	plotCmd.Flags().StringVar(&plotSVG, "svg", "", "also write the plotted field as an svg to this path")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata or a particle frame",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().IntVar(&exportFrame, "frame", -1, "frame to export as particle csv")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path for --frame")
	exportCmd.Flags().BoolVar(&exportSVG, "svg", false, "render --frame as svg instead of csv")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "grid search over scene parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepScene,
	}
	addSceneFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil, "swept parameter as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimize")
	_ = sweepCmd.MarkFlagRequired("param")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list built-in scenes or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}
	presetsCmd.Flags().BoolVar(&showYAML, "yaml", false, "print every preset as yaml")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list constitutive models, plasticity models and transfer schemes",
		RunE:  listModels,
	}

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, sweepCmd, listCmd, plotCmd, exportCmd, presetsCmd, modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "scene file (yaml)")
	cmd.Flags().IntVar(&frames, "frames", 0, "number of frames")
	cmd.Flags().Float64Var(&fixedDt, "dt", 0, "fixed substep size (0 selects adaptive CFL stepping)")
	cmd.Flags().Float64Var(&maxDt, "max-dt", 0, "largest adaptive substep")
	cmd.Flags().Float64Var(&cfl, "cfl", 0, "CFL number for adaptive stepping")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines per stage (0 uses GOMAXPROCS)")
}

func newLogger() *slog.Logger {
	logger := newFileLogger(os.Stderr)
	slog.SetDefault(logger)
	return logger
}

func newFileLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
