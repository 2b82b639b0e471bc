// Package metrics summarizes a simulation run from per-frame samples.
package metrics

// Sample is the state of a simulation at the end of one frame.
type Sample struct {
	Frame       int
	Time        float64
	Dt          float64 // smallest substep taken during the frame
	Spacing     float64
	Kinetic     float64
	Elastic     float64
	Potential   float64
	MaxVelocity float64
	MinJ        float64
	MaxJ        float64
}

// Total returns kinetic + elastic + potential energy.
func (s Sample) Total() float64 {
	return s.Kinetic + s.Elastic + s.Potential
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Defaults returns the metrics recorded for every run.
func Defaults() []Metric {
	return []Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewStability(1.0),
		NewVolumeDrift(),
	}
}

// Collect returns the current value of every metric keyed by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
