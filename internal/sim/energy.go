package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// KineticEnergy returns Σ ½ m |v|².
func (s *Simulator) KineticEnergy() float64 {
	return s.pool.Sum(len(s.particles), func(start, end int) float64 {
		var e float64
		for _, p := range s.particles[start:end] {
			e += 0.5 * p.Material.Mass * r3.Norm2(p.Vel)
		}
		return e
	})
}

// ElasticEnergy returns Σ V⁰ ψ(F, J). It is zero when no constitutive model
// is set.
func (s *Simulator) ElasticEnergy() float64 {
	if s.model == nil {
		return 0
	}
	return s.pool.Sum(len(s.particles), func(start, end int) float64 {
		var e float64
		for i := start; i < end; i++ {
			p := &s.particles[i]
			e += p.Material.Volume * s.model.EnergyDensity(p)
		}
		return e
	})
}

// PotentialEnergy returns the gravitational energy Σ -m g·x relative to the
// domain origin.
func (s *Simulator) PotentialEnergy() float64 {
	g := s.info.Gravity
	return s.pool.Sum(len(s.particles), func(start, end int) float64 {
		var e float64
		for _, p := range s.particles[start:end] {
			e -= p.Material.Mass * r3.Dot(g, p.Pos)
		}
		return e
	})
}

// TotalEnergy is the sum of kinetic, elastic and potential energy.
func (s *Simulator) TotalEnergy() float64 {
	return s.KineticEnergy() + s.ElasticEnergy() + s.PotentialEnergy()
}

// JacobianRange returns the smallest and largest particle J. Both are 1 when
// there are no particles.
func (s *Simulator) JacobianRange() (float64, float64) {
	if len(s.particles) == 0 {
		return 1, 1
	}
	lo := s.pool.Reduce(len(s.particles), math.Inf(1), func(start, end int) float64 {
		m := math.Inf(1)
		for _, p := range s.particles[start:end] {
			m = math.Min(m, p.J)
		}
		return m
	}, math.Min)
	hi := s.pool.Max(len(s.particles), func(start, end int) float64 {
		m := math.Inf(-1)
		for _, p := range s.particles[start:end] {
			m = math.Max(m, p.J)
		}
		return m
	})
	return lo, hi
}

// GridMass returns the total node mass after the last P2G transfer.
func (s *Simulator) GridMass() float64 {
	return s.pool.Sum(len(s.grid), func(start, end int) float64 {
		var m float64
		for _, g := range s.grid[start:end] {
			m += g.Mass
		}
		return m
	})
}
