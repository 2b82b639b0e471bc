package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Stability is the fraction of frames whose CFL number, maxVelocity·dt/h,
// stayed at or below Threshold. A NaN CFL number counts against it.
type Stability struct {
	Threshold float64
	cfl       []float64
}

func NewStability(threshold float64) *Stability {
	return &Stability{Threshold: threshold}
}

func (*Stability) Name() string { return "stability" }

func (s *Stability) Observe(x Sample) {
	var c float64
	if x.Spacing > 0 {
		c = x.MaxVelocity * x.Dt / x.Spacing
	}
	s.cfl = append(s.cfl, c)
}

func (s *Stability) Value() float64 {
	if len(s.cfl) == 0 {
		return 1
	}
	calm := 0
	for _, c := range s.cfl {
		if c <= s.Threshold {
			calm++
		}
	}
	return float64(calm) / float64(len(s.cfl))
}

func (s *Stability) Reset() { s.cfl = s.cfl[:0] }

// VolumeDrift is the largest |J - 1| seen on any particle.
type VolumeDrift struct {
	max float64
}

func NewVolumeDrift() *VolumeDrift { return &VolumeDrift{} }

func (*VolumeDrift) Name() string { return "volume_drift" }

func (v *VolumeDrift) Observe(x Sample) {
	v.max = floats.Max([]float64{v.max, math.Abs(x.MinJ - 1), math.Abs(x.MaxJ - 1)})
}

func (v *VolumeDrift) Value() float64 { return v.max }

func (v *VolumeDrift) Reset() { v.max = 0 }
