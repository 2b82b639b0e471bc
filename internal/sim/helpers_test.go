package sim

import (
	"github.com/san-kum/mpmsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

func benchmarkScene() (*Simulator, error) {
	m, err := physics.NewMaterial(50, 0.3, 1e-4, 1)
	if err != nil {
		return nil, err
	}
	s := New(WithLogger(quietLogger))
	if err := s.Initialize(r3.Vec{Y: -9.8}, r3.Vec{X: 1, Y: 1, Z: 1}, 0.02); err != nil {
		return nil, err
	}
	s.SetConstitutiveModel(physics.NeoHookean{})
	if err := s.AddObject(block(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 20, 0.01), m); err != nil {
		return nil, err
	}
	return s, nil
}
