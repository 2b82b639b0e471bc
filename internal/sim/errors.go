package sim

import (
	"errors"
	"fmt"
)

// Domain errors for simulator operations.
var (
	// ErrNotInitialized indicates Substep was called before Initialize.
	ErrNotInitialized = errors.New("sim: simulator not initialized")

	// ErrNoConstitutiveModel indicates Substep was called without a stress model.
	ErrNoConstitutiveModel = errors.New("sim: constitutive model not set")

	// ErrInvalidGrid indicates a non-positive grid spacing or world extent.
	ErrInvalidGrid = errors.New("sim: invalid grid dimensions")

	// ErrInvalidStep indicates a non-positive substep size.
	ErrInvalidStep = errors.New("sim: time step must be positive")

	// ErrDimensionMismatch indicates position and velocity slices of different length.
	ErrDimensionMismatch = errors.New("sim: positions and velocities differ in length")

	// ErrNilMaterial indicates an object was added without a material.
	ErrNilMaterial = errors.New("sim: material must not be nil")

	// ErrOutOfGrid indicates a particle stencil reaches outside the grid.
	ErrOutOfGrid = errors.New("sim: particle out of grid")
)

// SimulationError wraps an error with the substep and particle it occurred at.
type SimulationError struct {
	Step     int
	Particle int
	Wrapped  error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d, particle %d: %v", e.Step, e.Particle, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
