package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/san-kum/mpmsim/internal/linalg"
)

// Plasticity projects a trial deformation gradient back onto the yield
// surface. ProjectStrain may rewrite p.F and reports whether it did so in a
// way that changes det(F).
type Plasticity interface {
	Name() string
	ProjectStrain(p *Particle) bool
}

// Configurable models expose named scalar parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// VonMises is a von Mises yield surface in logarithmic strain space with
// linear isotropic hardening.
//
// By default the hardening state (YieldStress, Alpha) is a single value
// shared by every particle, guarded by a mutex. With PerParticle set, each
// particle carries its own copy in Particle.Plastic, seeded from the
// instance on first use.
type VonMises struct {
	YieldStress float64
	Xi          float64 // hardening coefficient
	Alpha       float64 // accumulated plastic strain
	PerParticle bool

	mu sync.Mutex
}

// NewVonMises returns a pooled von Mises model.
func NewVonMises(yieldStress, xi float64) *VonMises {
	return &VonMises{YieldStress: yieldStress, Xi: xi}
}

func (v *VonMises) Name() string { return "von_mises" }

// FailStress is the uniaxial stress at which the current surface yields.
func (v *VonMises) FailStress() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return math.Sqrt(1.5) * v.YieldStress
}

func (v *VonMises) ProjectStrain(p *Particle) bool {
	u, sigma, vt := linalg.SVDDiagonal(p.F)

	var eps [3]float64
	for i := range sigma {
		eps[i] = math.Log(math.Max(sigma[i], 1e-4))
	}
	tr := eps[0] + eps[1] + eps[2]
	var dev [3]float64
	var devNorm float64
	for i := range eps {
		dev[i] = eps[i] - tr/3
		devNorm += dev[i] * dev[i]
	}
	devNorm = math.Sqrt(devNorm)

	twoMu := 2 * p.Material.Mu
	var deltaGamma float64
	if v.PerParticle {
		st := &p.Plastic
		if !st.Initialized {
			st.Initialized = true
			st.YieldStress = v.YieldStress
			st.Alpha = v.Alpha
		}
		deltaGamma = devNorm - st.YieldStress/twoMu
		if deltaGamma < 0 || devNorm == 0 {
			return false
		}
		st.Alpha += math.Sqrt(2.0/3.0) * deltaGamma
		st.YieldStress += v.Xi * deltaGamma
	} else {
		v.mu.Lock()
		deltaGamma = devNorm - v.YieldStress/twoMu
		if deltaGamma < 0 || devNorm == 0 {
			v.mu.Unlock()
			return false
		}
		v.Alpha += math.Sqrt(2.0/3.0) * deltaGamma
		v.YieldStress += v.Xi * deltaGamma
		v.mu.Unlock()
	}

	var h [3]float64
	for i := range h {
		h[i] = math.Exp(eps[i] - deltaGamma/devNorm*dev[i])
	}
	p.F = linalg.Compose(u, h, vt)
	return true
}

func (v *VonMises) GetParams() map[string]float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return map[string]float64{"yield_stress": v.YieldStress, "xi": v.Xi, "alpha": v.Alpha}
}

func (v *VonMises) SetParam(name string, value float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch name {
	case "yield_stress":
		v.YieldStress = value
	case "xi":
		v.Xi = value
	case "alpha":
		v.Alpha = value
	default:
		return fmt.Errorf("%w: von_mises has no %q", ErrUnknownParam, name)
	}
	return nil
}

// Snow clamps the principal stretches into [1-ThetaC, 1+ThetaS], moving the
// excess into the plastic volume ratio Jp. It never reports a change:
// the elastic part keeps J as the integrated total volume ratio.
type Snow struct {
	ThetaC      float64 // critical compression
	ThetaS      float64 // critical stretch
	MinJp       float64
	MaxJp       float64
	Jp          float64
	PerParticle bool

	mu sync.Mutex
}

// NewSnow returns a pooled snow model with the usual constants.
func NewSnow() *Snow {
	return &Snow{ThetaC: 2e-2, ThetaS: 7.5e-3, MinJp: 0.6, MaxJp: 20, Jp: 1}
}

func (s *Snow) Name() string { return "snow" }

func (s *Snow) clampJp(jp float64) float64 {
	// Written as negated comparisons so NaN lands on a bound.
	if !(jp <= s.MaxJp) {
		jp = s.MaxJp
	}
	if !(jp >= s.MinJp) {
		jp = s.MinJp
	}
	return jp
}

func (s *Snow) ProjectStrain(p *Particle) bool {
	u, sigma, v := linalg.SVDDiagonal(p.F)

	feDet := 1.0
	for i := range sigma {
		sigma[i] = math.Max(math.Min(sigma[i], 1+s.ThetaS), 1-s.ThetaC)
		feDet *= sigma[i]
	}
	ratio := p.F.Det() / feDet
	p.F = linalg.Compose(u, sigma, v)

	if s.PerParticle {
		st := &p.Plastic
		if !st.Initialized {
			st.Initialized = true
			st.Jp = s.Jp
		}
		st.Jp = s.clampJp(st.Jp * ratio)
		return false
	}

	s.mu.Lock()
	s.Jp = s.clampJp(s.Jp * ratio)
	s.mu.Unlock()
	return false
}

// PlasticJ returns the pooled plastic volume ratio.
func (s *Snow) PlasticJ() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Jp
}

func (s *Snow) GetParams() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]float64{
		"theta_c": s.ThetaC, "theta_s": s.ThetaS,
		"min_jp": s.MinJp, "max_jp": s.MaxJp, "jp": s.Jp,
	}
}

func (s *Snow) SetParam(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case "theta_c":
		s.ThetaC = value
	case "theta_s":
		s.ThetaS = value
	case "min_jp":
		s.MinJp = value
	case "max_jp":
		s.MaxJp = value
	case "jp":
		s.Jp = value
	default:
		return fmt.Errorf("%w: snow has no %q", ErrUnknownParam, name)
	}
	return nil
}
