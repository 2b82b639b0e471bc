package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Energy is the mean total energy over all observed frames.
type Energy struct {
	totals []float64
}

func NewEnergy() *Energy { return &Energy{} }

func (*Energy) Name() string { return "energy" }

func (e *Energy) Observe(s Sample) {
	e.totals = append(e.totals, s.Total())
}

func (e *Energy) Value() float64 {
	if len(e.totals) == 0 {
		return 0
	}
	return floats.Sum(e.totals) / float64(len(e.totals))
}

func (e *Energy) Reset() { e.totals = e.totals[:0] }

// EnergyDrift is the largest relative deviation of total energy from the
// first observed frame. A scene that starts with zero energy reports zero.
type EnergyDrift struct {
	ref     float64
	started bool
	worst   float64
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (*EnergyDrift) Name() string { return "energy_drift" }

func (d *EnergyDrift) Observe(s Sample) {
	total := s.Total()
	if !d.started {
		d.ref, d.started = total, true
		return
	}
	if d.ref == 0 {
		return
	}
	d.worst = math.Max(d.worst, math.Abs((total-d.ref)/d.ref))
}

func (d *EnergyDrift) Value() float64 { return d.worst }

func (d *EnergyDrift) Reset() { *d = EnergyDrift{} }
