package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/mpmsim/internal/interp"
	"github.com/san-kum/mpmsim/internal/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Substep advances the simulation by dt.
//
// The step is rejected before any state is touched if the simulator is not
// initialized, no constitutive model is set, dt is not positive, or a
// particle stencil reaches outside the grid.
func (s *Simulator) Substep(dt float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.model == nil {
		return ErrNoConstitutiveModel
	}
	if dt <= 0 {
		return fmt.Errorf("%w: dt=%g", ErrInvalidStep, dt)
	}
	if err := s.checkBounds(); err != nil {
		return err
	}

	s.profiler.StartTick()
	defer s.profiler.EndTick()

	s.profiler.StartPhase(StageClear)
	s.clearGrid()

	s.profiler.StartPhase(StageP2G)
	s.transferP2G()
	s.normalizeMomentum()

	s.profiler.StartPhase(StageGravity)
	s.addGravity()

	s.profiler.StartPhase(StageGridForce)
	s.updateGridForce()

	s.profiler.StartPhase(StageGridVelocity)
	s.updateGridVelocity(dt)

	s.profiler.StartPhase(StageGridBoundary)
	s.solveGridBoundary(BoundaryThickness)

	s.profiler.StartPhase(StageGridCollision)
	s.solveGridCollision()

	s.profiler.StartPhase(StageUpdateF)
	s.updateF(dt)

	s.profiler.StartPhase(StageG2P)
	s.transferG2P()

	s.profiler.StartPhase(StageAdvection)
	s.advect(dt)

	s.profiler.StartPhase(StageParticleCollision)
	s.solveParticleCollision()

	s.info.Step++
	s.stats = Stats{
		Step:        s.info.Step,
		ActiveNodes: int(s.activeCount.Load()),
		NegativeJ:   int(s.negativeJ.Load()),
		MaxVelocity: s.info.MaxVelocity,
	}
	return nil
}

func (s *Simulator) stencil(pos r3.Vec) (interp.Stencil, r3.Vec) {
	xp := r3.Scale(1/s.info.Spacing, pos)
	return interp.Quadratic(xp), xp
}

func (s *Simulator) checkBounds() error {
	dims := s.dims()
	return s.pool.ForErr(len(s.particles), func(start, end int) error {
		for i := start; i < end; i++ {
			st, _ := s.stencil(s.particles[i].Pos)
			if !st.InBounds(dims) {
				return &SimulationError{
					Step:     s.info.Step,
					Particle: i,
					Wrapped:  fmt.Errorf("%w: position %v", ErrOutOfGrid, s.particles[i].Pos),
				}
			}
		}
		return nil
	})
}

func (s *Simulator) clearGrid() {
	s.pool.For(len(s.grid), func(start, end int) {
		for i := start; i < end; i++ {
			g := &s.grid[i]
			g.Mass = 0
			g.VelIn = r3.Vec{}
			g.Vel = r3.Vec{}
			g.Force = r3.Vec{}
		}
	})
	s.activeCount.Store(0)
	s.negativeJ.Store(0)
	s.firstNegativeJ.Store(-1)
	s.info.MaxVelocity = 0
}

func (s *Simulator) transferP2G() {
	apic := s.scheme == APIC
	s.pool.For(len(s.particles), func(start, end int) {
		for p := start; p < end; p++ {
			part := &s.particles[p]
			st, xp := s.stencil(part.Pos)
			mass := part.Material.Mass

			for i := 0; i < interp.Support; i++ {
				for j := 0; j < interp.Support; j++ {
					for k := 0; k < interp.Support; k++ {
						n := st.Node(i, j, k)
						idx := s.index(n[0], n[1], n[2])
						wm := st.Weight(i, j, k) * mass

						v := part.Vel
						if apic {
							v = r3.Add(v, part.B.MulVec(r3.Scale(4, st.Offset(i, j, k, xp))))
						}

						s.locks[idx].Lock()
						s.grid[idx].Mass += wm
						s.grid[idx].VelIn = r3.Add(s.grid[idx].VelIn, r3.Scale(wm, v))
						s.locks[idx].Unlock()
					}
				}
			}
		}
	})
}

// normalizeMomentum turns accumulated momentum into velocity and collects
// the nodes that received mass.
func (s *Simulator) normalizeMomentum() {
	s.pool.For(len(s.grid), func(start, end int) {
		for i := start; i < end; i++ {
			g := &s.grid[i]
			if g.Mass == 0 {
				g.VelIn = r3.Vec{}
				continue
			}
			g.VelIn = r3.Scale(1/g.Mass, g.VelIn)
			slot := s.activeCount.Add(1) - 1
			s.active[slot] = i
		}
	})
}

func (s *Simulator) activeNodes() []int {
	return s.active[:s.activeCount.Load()]
}

func (s *Simulator) addGravity() {
	active := s.activeNodes()
	s.pool.For(len(active), func(start, end int) {
		for _, idx := range active[start:end] {
			g := &s.grid[idx]
			g.Force = r3.Add(g.Force, r3.Scale(g.Mass, s.info.Gravity))
		}
	})
}

func (s *Simulator) updateGridForce() {
	invH := 1 / s.info.Spacing
	s.pool.For(len(s.particles), func(start, end int) {
		for p := start; p < end; p++ {
			part := &s.particles[p]
			fPart, jPart := s.model.MixedStressTensor(part)
			stress := fPart.Mul(part.F.T()).Add(jPart).Scale(part.Material.Volume)
			st, _ := s.stencil(part.Pos)

			for i := 0; i < interp.Support; i++ {
				for j := 0; j < interp.Support; j++ {
					for k := 0; k < interp.Support; k++ {
						n := st.Node(i, j, k)
						idx := s.index(n[0], n[1], n[2])
						f := stress.MulVec(st.Gradient(i, j, k, invH))

						s.locks[idx].Lock()
						s.grid[idx].Force = r3.Sub(s.grid[idx].Force, f)
						s.locks[idx].Unlock()
					}
				}
			}
		}
	})
}

func (s *Simulator) updateGridVelocity(dt float64) {
	active := s.activeNodes()
	s.pool.For(len(active), func(start, end int) {
		for _, idx := range active[start:end] {
			g := &s.grid[idx]
			g.Vel = r3.Add(g.VelIn, r3.Scale(dt/g.Mass, g.Force))
		}
	})
}

// solveGridBoundary zeroes outward velocity components on the outer
// thickness layers of each face. Inactive nodes have zero velocity, so only
// active nodes are visited.
func (s *Simulator) solveGridBoundary(thickness int) {
	dims := s.dims()
	active := s.activeNodes()
	s.pool.For(len(active), func(start, end int) {
		for _, idx := range active[start:end] {
			g := &s.grid[idx]
			for axis := 0; axis < 3; axis++ {
				c := g.Coord[axis]
				v := linalg.Component(g.Vel, axis)
				if c < thickness && v < 0 {
					g.Vel = linalg.SetComponent(g.Vel, axis, 0)
				}
				if c >= dims[axis]-thickness && v > 0 {
					g.Vel = linalg.SetComponent(g.Vel, axis, 0)
				}
			}
		}
	})
}

func (s *Simulator) solveGridCollision() {
	if len(s.collisions) == 0 {
		return
	}
	h := s.info.Spacing
	active := s.activeNodes()
	s.pool.For(len(active), func(start, end int) {
		for _, idx := range active[start:end] {
			g := &s.grid[idx]
			x := r3.Vec{X: float64(g.Coord[0]) * h, Y: float64(g.Coord[1]) * h, Z: float64(g.Coord[2]) * h}
			for _, c := range s.collisions {
				g.Vel = c.Resolve(x, g.Vel)
			}
		}
	})
}

func (s *Simulator) updateF(dt float64) {
	invH := 1 / s.info.Spacing
	s.pool.For(len(s.particles), func(start, end int) {
		for p := start; p < end; p++ {
			part := &s.particles[p]
			st, _ := s.stencil(part.Pos)

			var gradV linalg.Mat3
			for i := 0; i < interp.Support; i++ {
				for j := 0; j < interp.Support; j++ {
					for k := 0; k < interp.Support; k++ {
						n := st.Node(i, j, k)
						idx := s.index(n[0], n[1], n[2])
						gradV = gradV.Add(linalg.Outer(s.grid[idx].Vel, st.Gradient(i, j, k, invH)))
					}
				}
			}

			part.F = linalg.Identity().Add(gradV.Scale(dt)).Mul(part.F)
			part.J *= 1 + dt*gradV.Trace()

			if s.plasticity != nil && s.plasticity.ProjectStrain(part) {
				part.J = part.F.Det()
			}

			if part.J < 0 {
				s.negativeJ.Add(1)
				s.firstNegativeJ.CompareAndSwap(-1, int64(p))
			}
		}
	})

	if n := s.negativeJ.Load(); n > 0 {
		first := s.firstNegativeJ.Load()
		s.logger.Warn("negative volume ratio",
			"step", s.info.Step,
			"count", n,
			"particle", first,
			"J", s.particles[first].J,
		)
	}
}

func (s *Simulator) transferG2P() {
	apic := s.scheme == APIC
	alpha := s.info.Alpha
	s.pool.For(len(s.particles), func(start, end int) {
		for p := start; p < end; p++ {
			part := &s.particles[p]
			st, xp := s.stencil(part.Pos)

			var vPIC r3.Vec
			vFLIP := part.Vel
			var b linalg.Mat3

			for i := 0; i < interp.Support; i++ {
				for j := 0; j < interp.Support; j++ {
					for k := 0; k < interp.Support; k++ {
						n := st.Node(i, j, k)
						g := &s.grid[s.index(n[0], n[1], n[2])]
						w := st.Weight(i, j, k)

						vPIC = r3.Add(vPIC, r3.Scale(w, g.Vel))
						vFLIP = r3.Add(vFLIP, r3.Scale(w, r3.Sub(g.Vel, g.VelIn)))
						b = b.Add(linalg.Outer(r3.Scale(w, g.Vel), st.Offset(i, j, k, xp)))
					}
				}
			}

			part.B = b
			if apic {
				part.Vel = vPIC
			} else {
				part.Vel = r3.Add(r3.Scale(1-alpha, vPIC), r3.Scale(alpha, vFLIP))
			}
		}
	})
}

func (s *Simulator) advect(dt float64) {
	s.info.MaxVelocity = s.pool.Reduce(len(s.particles), 0, func(start, end int) float64 {
		var maxVel float64
		for p := start; p < end; p++ {
			part := &s.particles[p]
			part.Pos = r3.Add(part.Pos, r3.Scale(dt, part.Vel))
			maxVel = max(maxVel, r3.Norm(part.Vel))
		}
		return maxVel
	}, math.Max)
}

func (s *Simulator) solveParticleCollision() {
	if len(s.collisions) == 0 {
		return
	}
	s.pool.For(len(s.particles), func(start, end int) {
		for p := start; p < end; p++ {
			part := &s.particles[p]
			for _, c := range s.collisions {
				part.Vel = c.Resolve(part.Pos, part.Vel)
			}
		}
	})
}
