// Package collision describes static obstacles as level sets and resolves
// grid-node and particle velocities against them.
package collision

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// LevelSet is an implicit obstacle surface. Points with a non-positive signed
// distance are inside the obstacle.
type LevelSet interface {
	Inside(x r3.Vec) bool
	SignedDistance(x r3.Vec) float64
	// Normal returns the unit outward normal at x.
	Normal(x r3.Vec) r3.Vec
}

// HalfSpace is the set of points below a plane through Origin whose outward
// normal is Direction.
type HalfSpace struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// NewHalfSpace returns a half-space with a normalized direction.
func NewHalfSpace(origin, direction r3.Vec) (*HalfSpace, error) {
	if r3.Norm2(direction) == 0 {
		return nil, fmt.Errorf("collision: half-space direction must be non-zero")
	}
	return &HalfSpace{Origin: origin, Direction: r3.Unit(direction)}, nil
}

func (h *HalfSpace) SignedDistance(x r3.Vec) float64 {
	return r3.Dot(r3.Sub(x, h.Origin), h.Direction)
}

func (h *HalfSpace) Inside(x r3.Vec) bool {
	return h.SignedDistance(x) <= 0
}

func (h *HalfSpace) Normal(r3.Vec) r3.Vec {
	return h.Direction
}

// Sphere is a solid ball.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// NewSphere returns a sphere, rejecting non-positive radii.
func NewSphere(center r3.Vec, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("collision: sphere radius must be positive, got %g", radius)
	}
	return &Sphere{Center: center, Radius: radius}, nil
}

func (s *Sphere) SignedDistance(x r3.Vec) float64 {
	return r3.Norm(r3.Sub(x, s.Center)) - s.Radius
}

func (s *Sphere) Inside(x r3.Vec) bool {
	return r3.Norm2(r3.Sub(x, s.Center)) <= s.Radius*s.Radius
}

// Normal is undefined at the center; the zero vector is returned there.
func (s *Sphere) Normal(x r3.Vec) r3.Vec {
	d := r3.Sub(x, s.Center)
	if r3.Norm2(d) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(d)
}
