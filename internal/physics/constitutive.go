package physics

import (
	"math"

	"github.com/san-kum/mpmsim/internal/linalg"
)

// MinJ is the lower clamp applied to J and det(F) before any logarithm or
// reciprocal, keeping inverted elements finite.
const MinJ = 1e-6

// ConstitutiveModel maps a particle's deformation to stress and strain
// energy. All methods read the particle only and are safe to call
// concurrently on distinct particles.
type ConstitutiveModel interface {
	Name() string

	// StressTensor returns the first Piola-Kirchhoff stress P.
	StressTensor(p *Particle) (linalg.Mat3, error)

	// EnergyDensity returns the strain energy density ψ per unit rest volume.
	EnergyDensity(p *Particle) float64

	// MixedStressTensor splits the stress into an F-channel P_F, contracted
	// with Fᵀ by the grid-force stage, and a J-channel P_J used as is.
	MixedStressTensor(p *Particle) (fPart, jPart linalg.Mat3)
}

func clampedJ(p *Particle) float64 {
	return math.Max(p.J, MinJ)
}

// NeoHookean is the compressible Neo-Hookean solid.
type NeoHookean struct{}

func (NeoHookean) Name() string { return "neohookean" }

func (NeoHookean) StressTensor(p *Particle) (linalg.Mat3, error) {
	m := p.Material
	fInvT := p.F.InverseTranspose(MinJ)
	logJ := math.Log(clampedJ(p))
	return p.F.Sub(fInvT).Scale(m.Mu).Add(fInvT.Scale(m.Lambda * logJ)), nil
}

func (NeoHookean) EnergyDensity(p *Particle) float64 {
	m := p.Material
	logJ := math.Log(clampedJ(p))
	return 0.5*m.Mu*(p.F.FrobeniusSq()-3) - m.Mu*logJ + 0.5*m.Lambda*logJ*logJ
}

func (n NeoHookean) MixedStressTensor(p *Particle) (linalg.Mat3, linalg.Mat3) {
	s, _ := n.StressTensor(p)
	return s, linalg.Mat3{}
}

// QuadraticVolumePenalty penalizes volume change only; it behaves as a
// weakly compressible fluid.
type QuadraticVolumePenalty struct{}

func (QuadraticVolumePenalty) Name() string { return "volume_penalty" }

func (QuadraticVolumePenalty) StressTensor(p *Particle) (linalg.Mat3, error) {
	j := clampedJ(p)
	return p.F.InverseTranspose(MinJ).Scale(p.Material.Lambda * (j - 1) * j), nil
}

func (QuadraticVolumePenalty) EnergyDensity(p *Particle) float64 {
	d := p.J - 1
	return 0.5 * p.Material.Lambda * d * d
}

func (QuadraticVolumePenalty) MixedStressTensor(p *Particle) (linalg.Mat3, linalg.Mat3) {
	j := clampedJ(p)
	return linalg.Mat3{}, linalg.ScaledIdentity(p.Material.Lambda * (j - 1) * j)
}

// NeoHookeanFluid keeps only the volumetric term of the Neo-Hookean stress.
type NeoHookeanFluid struct{}

func (NeoHookeanFluid) Name() string { return "neohookean_fluid" }

func (NeoHookeanFluid) StressTensor(p *Particle) (linalg.Mat3, error) {
	logJ := math.Log(clampedJ(p))
	return p.F.InverseTranspose(MinJ).Scale(p.Material.Lambda * logJ), nil
}

func (NeoHookeanFluid) EnergyDensity(p *Particle) float64 {
	return NeoHookean{}.EnergyDensity(p)
}

func (n NeoHookeanFluid) MixedStressTensor(p *Particle) (linalg.Mat3, linalg.Mat3) {
	s, _ := n.StressTensor(p)
	return s, linalg.Mat3{}
}

// MixedPressureFluid is the pressure-only fluid with
// ψ = ½K(½(J²-1) - ln J). Only the mixed form is available.
type MixedPressureFluid struct{}

func (MixedPressureFluid) Name() string { return "mixed_fluid" }

func (MixedPressureFluid) StressTensor(*Particle) (linalg.Mat3, error) {
	return linalg.Mat3{}, ErrNotImplemented
}

func (MixedPressureFluid) EnergyDensity(p *Particle) float64 {
	j := clampedJ(p)
	return 0.5 * p.Material.Bulk * (0.5*(j*j-1) - math.Log(j))
}

func (MixedPressureFluid) MixedStressTensor(p *Particle) (linalg.Mat3, linalg.Mat3) {
	j := clampedJ(p)
	return linalg.Mat3{}, linalg.ScaledIdentity(0.5 * p.Material.Bulk * (j - 1/j) * j)
}
