package physics

import (
	"fmt"

	"github.com/san-kum/mpmsim/internal/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Material holds the elastic constants and per-particle mass shared by all
// particles sampled from one object. Derived constants are computed once by
// [NewMaterial]; mutate a Material only through a fresh NewMaterial call.
type Material struct {
	YoungModulus float64
	PoissonRatio float64
	Mass         float64
	Density      float64

	Mu     float64 // shear modulus
	Lambda float64 // first Lamé parameter
	Bulk   float64 // bulk modulus K
	Volume float64 // initial particle volume
}

// NewMaterial derives μ, λ, K and the particle volume from Young's modulus,
// Poisson's ratio, particle mass and rest density.
func NewMaterial(youngModulus, poissonRatio, mass, density float64) (*Material, error) {
	switch {
	case youngModulus <= 0:
		return nil, fmt.Errorf("%w: young modulus must be positive, got %g", ErrInvalidMaterial, youngModulus)
	case poissonRatio <= -1 || poissonRatio >= 0.5:
		return nil, fmt.Errorf("%w: poisson ratio must lie in (-1, 0.5), got %g", ErrInvalidMaterial, poissonRatio)
	case mass <= 0:
		return nil, fmt.Errorf("%w: mass must be positive, got %g", ErrInvalidMaterial, mass)
	case density <= 0:
		return nil, fmt.Errorf("%w: density must be positive, got %g", ErrInvalidMaterial, density)
	}

	return &Material{
		YoungModulus: youngModulus,
		PoissonRatio: poissonRatio,
		Mass:         mass,
		Density:      density,
		Mu:           0.5 * youngModulus / (1 + poissonRatio),
		Lambda:       youngModulus * poissonRatio / ((1 + poissonRatio) * (1 - 2*poissonRatio)),
		Bulk:         youngModulus / (1 - 2*poissonRatio) / 3,
		Volume:       mass / density,
	}, nil
}

// PlasticState is the hardening state of one particle. It is used only by
// plasticity models running in per-particle mode.
type PlasticState struct {
	Initialized bool
	YieldStress float64
	Alpha       float64
	Jp          float64
}

// Particle is one material point.
type Particle struct {
	Pos r3.Vec
	Vel r3.Vec
	F   linalg.Mat3 // deformation gradient
	J   float64     // volume ratio, integrated alongside F
	B   linalg.Mat3 // APIC affine matrix

	Material *Material
	Plastic  PlasticState
}

// NewParticle returns an undeformed particle.
func NewParticle(pos, vel r3.Vec, m *Material) Particle {
	return Particle{
		Pos:      pos,
		Vel:      vel,
		F:        linalg.Identity(),
		J:        1,
		Material: m,
	}
}
