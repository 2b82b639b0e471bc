package sim

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/san-kum/mpmsim/internal/collision"
	"github.com/san-kum/mpmsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Simulator owns the particles and the background grid and advances them
// with explicit MPM substeps.
//
// Registration methods (AddObject, the setters, AddCollision) must not be
// called concurrently with Substep. Substep itself parallelizes internally.
type Simulator struct {
	info        Info
	initialized bool

	particles []physics.Particle
	grid      []GridAttr
	locks     []sync.Mutex

	active      []int
	activeCount atomic.Int64

	model      physics.ConstitutiveModel
	plasticity physics.Plasticity
	scheme     TransferScheme
	collisions []*collision.Object

	negativeJ      atomic.Int64
	firstNegativeJ atomic.Int64
	stats          Stats

	pool     workerPool
	logger   *slog.Logger
	profiler Profiler
}

// New returns an uninitialized simulator using the APIC transfer.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		info:     Info{Alpha: DefaultAlpha},
		pool:     newWorkerPool(0),
		logger:   slog.Default(),
		profiler: nopProfiler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize sizes the grid for a domain [0, world] with node spacing h.
// Each axis gets int(world/h + 1) nodes.
func (s *Simulator) Initialize(gravity, world r3.Vec, h float64) error {
	if h <= 0 || world.X <= 0 || world.Y <= 0 || world.Z <= 0 {
		return fmt.Errorf("%w: h=%g world=%v", ErrInvalidGrid, h, world)
	}

	w := int(world.X/h + 1)
	ht := int(world.Y/h + 1)
	l := int(world.Z/h + 1)

	s.info.Spacing = h
	s.info.Gravity = gravity
	s.info.World = world
	s.info.W, s.info.H, s.info.L = w, ht, l
	s.info.GridSize = w * ht * l

	s.grid = make([]GridAttr, s.info.GridSize)
	s.locks = make([]sync.Mutex, s.info.GridSize)
	s.active = make([]int, s.info.GridSize)
	for i := 0; i < w; i++ {
		for j := 0; j < ht; j++ {
			for k := 0; k < l; k++ {
				s.grid[s.index(i, j, k)].Coord = [3]int{i, j, k}
			}
		}
	}
	s.initialized = true

	s.logger.Info("grid initialized",
		"grid_size", s.info.GridSize,
		"dims", fmt.Sprintf("%dx%dx%d", w, ht, l),
		"h", h,
		"gravity", gravity,
		"world", world,
	)
	return nil
}

func (s *Simulator) index(i, j, k int) int {
	return i*s.info.H*s.info.L + j*s.info.L + k
}

func (s *Simulator) dims() [3]int {
	return [3]int{s.info.W, s.info.H, s.info.L}
}

// AddObject appends particles at rest at the given positions.
func (s *Simulator) AddObject(positions []r3.Vec, m *physics.Material) error {
	return s.AddObjectWithVelocity(positions, make([]r3.Vec, len(positions)), m)
}

// AddObjectWithVelocity appends particles with initial velocities.
// Particles start undeformed: F = I, J = 1, B = 0.
func (s *Simulator) AddObjectWithVelocity(positions, velocities []r3.Vec, m *physics.Material) error {
	if m == nil {
		return ErrNilMaterial
	}
	if len(positions) != len(velocities) {
		return fmt.Errorf("%w: %d positions, %d velocities", ErrDimensionMismatch, len(positions), len(velocities))
	}

	s.particles = slices.Grow(s.particles, len(positions))
	for i := range positions {
		s.particles = append(s.particles, physics.NewParticle(positions[i], velocities[i], m))
	}
	s.info.Particles = len(s.particles)
	return nil
}

func (s *Simulator) SetConstitutiveModel(m physics.ConstitutiveModel) { s.model = m }

// SetPlasticity installs a plasticity model; nil disables plasticity.
func (s *Simulator) SetPlasticity(p physics.Plasticity) { s.plasticity = p }

// SetTransferScheme selects the G2P transfer. FLIP schemes also set the
// blend factor; APIC leaves it untouched.
func (s *Simulator) SetTransferScheme(t TransferScheme) {
	s.scheme = t
	switch t {
	case FLIP95:
		s.info.Alpha = 0.95
	case FLIP99:
		s.info.Alpha = 0.99
	}
}

func (s *Simulator) TransferScheme() TransferScheme { return s.scheme }

// AddCollision appends obstacles. They are applied in insertion order.
func (s *Simulator) AddCollision(objs ...*collision.Object) {
	for _, o := range objs {
		if o != nil {
			s.collisions = append(s.collisions, o)
		}
	}
}

// Positions returns a copy of every particle position.
func (s *Simulator) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.particles))
	s.pool.For(len(s.particles), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = s.particles[i].Pos
		}
	})
	return out
}

// Particles returns a copy of the particle state.
func (s *Simulator) Particles() []physics.Particle {
	out := make([]physics.Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// MaxVelocity returns the largest particle speed of the last substep.
func (s *Simulator) MaxVelocity() float64 { return s.info.MaxVelocity }

func (s *Simulator) Info() Info { return s.info }

func (s *Simulator) LastStats() Stats { return s.stats }

// Clear drops all particles and the grid. The constitutive model,
// plasticity, transfer scheme and obstacles are kept; Initialize must be
// called again before the next Substep.
func (s *Simulator) Clear() {
	s.particles = nil
	s.grid = nil
	s.locks = nil
	s.active = nil
	s.activeCount.Store(0)
	s.stats = Stats{}
	s.initialized = false

	s.info = Info{Alpha: DefaultAlpha}
	s.SetTransferScheme(s.scheme)
}
