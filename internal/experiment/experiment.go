package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/collision"
	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/physics"
	"github.com/san-kum/mpmsim/internal/sim"
	"github.com/san-kum/mpmsim/internal/storage"
)

// minVelocity keeps the CFL step finite while the scene is at rest.
const minVelocity = 1e-4

// frameEpsilon is the leftover frame time treated as zero.
const frameEpsilon = 1e-12

// FrameStats summarizes one rendered frame.
type FrameStats struct {
	Frame       int
	Steps       int
	SimTime     float64
	MinDt       float64
	MaxVelocity float64
	Elapsed     time.Duration
	Kinetic     float64
	Elastic     float64
	Potential   float64
	ActiveNodes int
	NegativeJ   int
	MinJ        float64
	MaxJ        float64
}

// Record converts the stats to a stats.csv row.
func (f FrameStats) Record() storage.FrameRecord {
	return storage.FrameRecord{
		Frame:       f.Frame,
		Time:        f.SimTime,
		Steps:       f.Steps,
		MinDt:       f.MinDt,
		MaxVelocity: f.MaxVelocity,
		Kinetic:     f.Kinetic,
		Elastic:     f.Elastic,
		Potential:   f.Potential,
		ActiveNodes: f.ActiveNodes,
		NegativeJ:   f.NegativeJ,
		MinJ:        f.MinJ,
		MaxJ:        f.MaxJ,
		ElapsedMs:   float64(f.Elapsed.Microseconds()) / 1000,
	}
}

// Observer is notified after every substep and frame.
type Observer interface {
	OnSubstep(dt float64, elapsed time.Duration, st sim.Stats)
	OnFrame(fs FrameStats)
}

type Result struct {
	Frames    []FrameStats
	Metrics   map[string]float64
	Particles int
	Elapsed   time.Duration
}

type Experiment struct {
	cfg       *config.Config
	simulator *sim.Simulator
	metrics   []metrics.Metric
	observers []Observer
	logger    *slog.Logger
	fixedDt   float64
	frame     int
	time      float64
}

// Build validates cfg and constructs a ready-to-run simulator from it.
func Build(cfg *config.Config, logger *slog.Logger, opts ...sim.Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene %q: %w", cfg.Name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()

	model, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	plast, err := reg.GetPlasticity(cfg.Plasticity)
	if err != nil {
		return nil, err
	}
	scheme, err := reg.GetTransfer(cfg.Transfer)
	if err != nil {
		return nil, err
	}

	opts = append([]sim.Option{sim.WithWorkers(cfg.Workers), sim.WithLogger(logger)}, opts...)
	s := sim.New(opts...)
	if err := s.Initialize(cfg.Gravity.R3(), cfg.World.R3(), cfg.H); err != nil {
		return nil, err
	}
	s.SetConstitutiveModel(model)
	if plast != nil {
		s.SetPlasticity(plast)
	}
	s.SetTransferScheme(scheme)

	mats := make(map[string]*physics.Material, len(cfg.Materials))
	for name, mc := range cfg.Materials {
		m, err := physics.NewMaterial(mc.YoungModulus, mc.PoissonRatio, mc.Mass, mc.Density)
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", name, err)
		}
		mats[name] = m
	}

	for i, oc := range cfg.Objects {
		pts, err := samplePositions(oc, cfg.H)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		vel := make([]r3.Vec, len(pts))
		for j := range vel {
			vel[j] = oc.Velocity.R3()
		}
		if err := s.AddObjectWithVelocity(pts, vel, mats[oc.Material]); err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		b := Bounds(pts)
		logger.Debug("object added", "index", i, "shape", oc.Shape, "particles", len(pts), "min", b.Min, "max", b.Max)
	}

	for i, cc := range cfg.Collisions {
		obj, err := buildCollision(cc)
		if err != nil {
			return nil, fmt.Errorf("collision %d: %w", i, err)
		}
		s.AddCollision(obj)
	}

	logger.Info("scene built",
		"scene", cfg.Name,
		"model", model.Name(),
		"transfer", scheme,
		"particles", s.Info().Particles,
		"collisions", len(cfg.Collisions),
	)

	return &Experiment{
		cfg:       cfg,
		simulator: s,
		metrics:   reg.DefaultMetrics(),
		logger:    logger,
	}, nil
}

func samplePositions(oc config.ObjectConfig, h float64) ([]r3.Vec, error) {
	spacing := oc.Spacing
	if spacing <= 0 {
		spacing = h / 2
	}
	switch oc.Shape {
	case "box":
		return SampleBox(oc.Center.R3(), oc.Size.R3(), spacing), nil
	case "sphere":
		return SampleSphere(oc.Center.R3(), oc.Radius, spacing), nil
	case "file":
		pts, err := storage.ReadPoints(oc.Path)
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 {
			return nil, fmt.Errorf("%s: no vertices", oc.Path)
		}
		// File points are offset so their bounding box is centered on Center.
		b := Bounds(pts)
		shift := r3.Sub(oc.Center.R3(), r3.Scale(0.5, r3.Add(b.Min, b.Max)))
		for i := range pts {
			pts[i] = r3.Add(pts[i], shift)
		}
		return pts, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", oc.Shape)
	}
}

func buildCollision(cc config.CollisionConfig) (*collision.Object, error) {
	mode, err := collision.ParseMode(cc.Mode)
	if err != nil {
		return nil, err
	}
	var shape collision.LevelSet
	switch cc.Type {
	case "half_space":
		shape, err = collision.NewHalfSpace(cc.Origin.R3(), cc.Normal.R3())
	case "sphere":
		shape, err = collision.NewSphere(cc.Center.R3(), cc.Radius)
	default:
		err = fmt.Errorf("unknown collision type %q", cc.Type)
	}
	if err != nil {
		return nil, err
	}
	return collision.NewObject(shape, mode, cc.Friction), nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }

func (e *Experiment) Frame() int { return e.frame }

func (e *Experiment) Time() float64 { return e.time }

func (e *Experiment) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// SetFixedDt disables adaptive stepping when dt > 0. Frames still end
// exactly on the frame boundary.
func (e *Experiment) SetFixedDt(dt float64) { e.fixedDt = dt }

// NextDt returns the step size the next substep will use, before truncation
// to the frame boundary.
func (e *Experiment) NextDt() float64 {
	if e.fixedDt > 0 {
		return e.fixedDt
	}
	v := math.Max(minVelocity, e.simulator.MaxVelocity())
	return math.Min(e.cfg.MaxDt, e.cfg.H*e.cfg.CFL/v)
}

// StepFrame advances the simulation by one frame duration.
func (e *Experiment) StepFrame(ctx context.Context) (FrameStats, error) {
	start := time.Now()
	frameDur := e.cfg.FrameDuration()
	fs := FrameStats{Frame: e.frame, MinDt: math.Inf(1)}

	var elapsed float64
	for frameDur-elapsed > frameEpsilon {
		if err := ctx.Err(); err != nil {
			return fs, err
		}

		dt := e.NextDt()
		if elapsed+dt > frameDur {
			dt = frameDur - elapsed
		}

		t0 := time.Now()
		if err := e.simulator.Substep(dt); err != nil {
			return fs, fmt.Errorf("frame %d: %w", e.frame, err)
		}
		st := e.simulator.LastStats()
		for _, o := range e.observers {
			o.OnSubstep(dt, time.Since(t0), st)
		}

		elapsed += dt
		fs.Steps++
		fs.MinDt = math.Min(fs.MinDt, dt)
		fs.MaxVelocity = math.Max(fs.MaxVelocity, st.MaxVelocity)
		fs.NegativeJ += st.NegativeJ
		fs.ActiveNodes = st.ActiveNodes
	}

	e.time += elapsed
	e.frame++

	fs.SimTime = e.time
	fs.Kinetic = e.simulator.KineticEnergy()
	fs.Elastic = e.simulator.ElasticEnergy()
	fs.Potential = e.simulator.PotentialEnergy()
	fs.MinJ, fs.MaxJ = e.simulator.JacobianRange()
	fs.Elapsed = time.Since(start)

	sample := metrics.Sample{
		Frame:       fs.Frame,
		Time:        fs.SimTime,
		Dt:          fs.MinDt,
		Spacing:     e.cfg.H,
		Kinetic:     fs.Kinetic,
		Elastic:     fs.Elastic,
		Potential:   fs.Potential,
		MaxVelocity: fs.MaxVelocity,
		MinJ:        fs.MinJ,
		MaxJ:        fs.MaxJ,
	}
	for _, m := range e.metrics {
		m.Observe(sample)
	}
	for _, o := range e.observers {
		o.OnFrame(fs)
	}
	return fs, nil
}

// Run steps the configured number of frames, calling onFrame after each.
// A non-nil error from onFrame stops the run.
func (e *Experiment) Run(ctx context.Context, onFrame func(FrameStats) error) (*Result, error) {
	start := time.Now()
	res := &Result{
		Frames:    make([]FrameStats, 0, e.cfg.Frames),
		Particles: e.simulator.Info().Particles,
	}

	for e.frame < e.cfg.Frames {
		fs, err := e.StepFrame(ctx)
		if err != nil {
			res.Elapsed = time.Since(start)
			res.Metrics = metrics.Collect(e.metrics)
			return res, err
		}
		res.Frames = append(res.Frames, fs)

		e.logger.Debug("frame",
			"frame", fs.Frame,
			"steps", fs.Steps,
			"min_dt", fs.MinDt,
			"max_velocity", fs.MaxVelocity,
			"elapsed", fs.Elapsed,
		)
		if fs.NegativeJ > 0 {
			e.logger.Warn("negative jacobians during frame", "frame", fs.Frame, "count", fs.NegativeJ)
		}

		if onFrame != nil {
			if err := onFrame(fs); err != nil {
				res.Elapsed = time.Since(start)
				res.Metrics = metrics.Collect(e.metrics)
				return res, err
			}
		}
	}

	res.Elapsed = time.Since(start)
	res.Metrics = metrics.Collect(e.metrics)
	return res, nil
}

// Reset rewinds the experiment by rebuilding the scene from its config.
func (e *Experiment) Reset(opts ...sim.Option) error {
	fresh, err := Build(e.cfg, e.logger, opts...)
	if err != nil {
		return err
	}
	fresh.observers = e.observers
	fresh.fixedDt = e.fixedDt
	*e = *fresh
	return nil
}
