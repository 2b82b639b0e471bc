package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/sim"
)

const namespace = "mpmsim"

// Metrics exports run progress. It satisfies experiment.Observer.
type Metrics struct {
	Substeps        prometheus.Counter
	SubstepSeconds  prometheus.Histogram
	Frames          prometheus.Counter
	NegativeJ       prometheus.Counter
	ActiveNodes     prometheus.Gauge
	MaxSpeed        prometheus.Gauge
	SimTime         prometheus.Gauge
	KineticEnergy   prometheus.Gauge
	StepSizeSeconds prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Substeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "substeps_total",
			Help:      "Total substeps taken",
		}),
		SubstepSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "substep_seconds",
			Help:      "Wall-clock time per substep",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 2, 14),
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total frames completed",
		}),
		NegativeJ: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_jacobian_total",
			Help:      "Particles whose volume ratio went negative, summed over substeps",
		}),
		ActiveNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_nodes",
			Help:      "Grid nodes carrying mass in the last substep",
		}),
		MaxSpeed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_particle_speed",
			Help:      "Largest particle speed after the last substep",
		}),
		SimTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_time_seconds",
			Help:      "Simulated time at the end of the last frame",
		}),
		KineticEnergy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kinetic_energy",
			Help:      "Particle kinetic energy at the end of the last frame",
		}),
		StepSizeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_size_seconds",
			Help:      "Simulated dt per substep",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 8),
		}),
	}
}

func (m *Metrics) OnSubstep(dt float64, elapsed time.Duration, st sim.Stats) {
	m.Substeps.Inc()
	m.SubstepSeconds.Observe(elapsed.Seconds())
	m.StepSizeSeconds.Observe(dt)
	m.NegativeJ.Add(float64(st.NegativeJ))
	m.ActiveNodes.Set(float64(st.ActiveNodes))
	m.MaxSpeed.Set(st.MaxVelocity)
}

func (m *Metrics) OnFrame(fs experiment.FrameStats) {
	m.Frames.Inc()
	m.SimTime.Set(fs.SimTime)
	m.KineticEnergy.Set(fs.Kinetic)
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
