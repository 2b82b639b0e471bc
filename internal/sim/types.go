package sim

import (
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// TransferScheme selects how grid velocities are carried back to particles.
type TransferScheme int

const (
	// APIC is the affine particle-in-cell transfer.
	APIC TransferScheme = iota
	// FLIP99 blends 99% FLIP with 1% PIC.
	FLIP99
	// FLIP95 blends 95% FLIP with 5% PIC.
	FLIP95
)

func (t TransferScheme) String() string {
	switch t {
	case APIC:
		return "apic"
	case FLIP99:
		return "flip99"
	case FLIP95:
		return "flip95"
	default:
		return fmt.Sprintf("TransferScheme(%d)", int(t))
	}
}

// ParseTransferScheme accepts the names returned by String.
func ParseTransferScheme(s string) (TransferScheme, error) {
	switch strings.ToLower(s) {
	case "apic", "":
		return APIC, nil
	case "flip99":
		return FLIP99, nil
	case "flip95":
		return FLIP95, nil
	default:
		return 0, fmt.Errorf("sim: unknown transfer scheme %q", s)
	}
}

// DefaultAlpha is the FLIP fraction before any scheme is selected.
const DefaultAlpha = 0.95

// BoundaryThickness is the number of node layers at each domain face that
// block outward motion.
const BoundaryThickness = 2

// GridAttr is the state of one grid node.
type GridAttr struct {
	Mass  float64
	VelIn r3.Vec // momentum during P2G, then velocity before forces
	Vel   r3.Vec // velocity after forces and boundary conditions
	Force r3.Vec
	Coord [3]int
}

// Info summarizes the simulation domain and progress.
type Info struct {
	Particles   int
	W, H, L     int
	GridSize    int
	Spacing     float64
	Gravity     r3.Vec
	World       r3.Vec
	Alpha       float64
	MaxVelocity float64
	Step        int
}

// Stats describes the most recent substep.
type Stats struct {
	Step        int
	ActiveNodes int
	NegativeJ   int
	MaxVelocity float64
}

// Profiler receives stage boundaries of every substep.
type Profiler interface {
	StartTick()
	StartPhase(name string)
	EndTick()
}

// Stage names reported to a Profiler, in execution order.
const (
	StageClear             = "clear"
	StageP2G               = "p2g"
	StageGravity           = "gravity"
	StageGridForce         = "grid_force"
	StageGridVelocity      = "grid_velocity"
	StageGridBoundary      = "grid_boundary"
	StageGridCollision     = "grid_collision"
	StageUpdateF           = "update_f"
	StageG2P               = "g2p"
	StageAdvection         = "advection"
	StageParticleCollision = "particle_collision"
)

type nopProfiler struct{}

func (nopProfiler) StartTick()        {}
func (nopProfiler) StartPhase(string) {}
func (nopProfiler) EndTick()          {}

// Option configures a Simulator.
type Option func(*Simulator)

// WithWorkers sets the number of goroutines used per stage. Values below 1
// select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(s *Simulator) { s.pool = newWorkerPool(n) }
}

// WithLogger sets the logger used for grid setup and numerical warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfiler reports per-stage timings of every substep to p.
func WithProfiler(p Profiler) Option {
	return func(s *Simulator) {
		if p != nil {
			s.profiler = p
		}
	}
}
