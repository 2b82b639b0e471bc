package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/sim"
)

func TestPerfCollectorTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(sim.StageP2G)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(sim.StageG2P)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	assert.Equal(t, int64(5), stats.Ticks)
	assert.Greater(t, stats.AvgTickDuration, time.Duration(0))
	assert.Contains(t, stats.PhaseAvg, sim.StageP2G)
	assert.Contains(t, stats.PhaseAvg, sim.StageG2P)
	assert.LessOrEqual(t, stats.MinTickDuration, stats.MaxTickDuration)
	assert.Equal(t, sim.StageG2P, stats.Phases()[0])
}

func TestPerfCollectorRollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	for i := 0; i < 12; i++ {
		pc.StartTick()
		pc.StartPhase(sim.StageClear)
		pc.EndTick()
	}
	stats := pc.Stats()
	assert.Equal(t, int64(12), stats.Ticks)
	assert.Equal(t, 5, pc.sampleCount)
}

func TestPerfCollectorEmpty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	assert.Zero(t, stats.AvgTickDuration)
	assert.NotNil(t, stats.PhaseAvg)
	assert.Empty(t, stats.Phases())
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OnSubstep(1e-3, 2*time.Millisecond, sim.Stats{ActiveNodes: 40, NegativeJ: 2, MaxVelocity: 1.5})
	m.OnSubstep(1e-3, 2*time.Millisecond, sim.Stats{ActiveNodes: 42, NegativeJ: 1, MaxVelocity: 1.7})
	m.OnFrame(experiment.FrameStats{SimTime: 1.0 / 30, Kinetic: 0.25})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Substeps))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NegativeJ))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ActiveNodes))
	assert.Equal(t, 1.7, testutil.ToFloat64(m.MaxSpeed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames))
	assert.InDelta(t, 1.0/30, testutil.ToFloat64(m.SimTime), 1e-12)

	n, err := testutil.GatherAndCount(reg, "mpmsim_substep_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestObserversDuringRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Frames = 1
	cfg.World = config.Vec3{0.5, 0.5, 0.5}
	cfg.Objects[0].Center = config.Vec3{0.25, 0.3, 0.25}
	cfg.Objects[0].Size = config.Vec3{0.1, 0.1, 0.1}
	cfg.Collisions[0].Origin = config.Vec3{0, 0.12, 0}

	perf := NewPerfCollector(50)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exp, err := experiment.Build(cfg, logger, sim.WithProfiler(perf))
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	exp.AddObserver(m)

	res, err := exp.Run(context.Background(), nil)
	require.NoError(t, err)

	steps := res.Frames[0].Steps
	assert.Equal(t, float64(steps), testutil.ToFloat64(m.Substeps))
	assert.Equal(t, int64(steps), perf.Stats().Ticks)
	assert.Contains(t, perf.Stats().PhaseAvg, sim.StageParticleCollision)
}
