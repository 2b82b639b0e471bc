// Package interp implements the quadratic B-spline kernel that couples
// particles to the background grid.
package interp

import (
	"math"

	"github.com/san-kum/mpmsim/internal/linalg"
	"gonum.org/v1/gonum/spatial/r3"
)

// Support is the number of grid nodes the kernel touches along each axis.
const Support = 3

// Stencil holds the 3x3x3 neighbourhood of a particle.
// W[o][axis] is the 1-D weight of node Base+o along axis, DW the derivative
// with respect to position in grid units.
type Stencil struct {
	Base [3]int
	W    linalg.Mat3
	DW   linalg.Mat3
}

// Quadratic evaluates the kernel at x, given in grid-cell units (world / h).
func Quadratic(x r3.Vec) Stencil {
	var s Stencil
	for axis := 0; axis < 3; axis++ {
		xa := linalg.Component(x, axis)
		o := math.Floor(xa - 0.5)
		s.Base[axis] = int(o)

		d0 := xa - o
		d1 := d0 - 1
		d2 := 1 - d1

		s.W[0][axis] = 0.5 * (1.5 - d0) * (1.5 - d0)
		s.W[1][axis] = 0.75 - d1*d1
		s.W[2][axis] = 0.5 * (1.5 - d2) * (1.5 - d2)

		s.DW[0][axis] = d0 - 1.5
		s.DW[1][axis] = -2 * d1
		s.DW[2][axis] = 1.5 - d2
	}
	return s
}

// Weight returns the tensor-product weight of node Base+(i,j,k).
func (s *Stencil) Weight(i, j, k int) float64 {
	return s.W[i][0] * s.W[j][1] * s.W[k][2]
}

// Gradient returns ∇w of node Base+(i,j,k) in world units.
func (s *Stencil) Gradient(i, j, k int, invH float64) r3.Vec {
	return r3.Vec{
		X: invH * s.DW[i][0] * s.W[j][1] * s.W[k][2],
		Y: invH * s.W[i][0] * s.DW[j][1] * s.W[k][2],
		Z: invH * s.W[i][0] * s.W[j][1] * s.DW[k][2],
	}
}

// Node returns the integer coordinate of node Base+(i,j,k).
func (s *Stencil) Node(i, j, k int) [3]int {
	return [3]int{s.Base[0] + i, s.Base[1] + j, s.Base[2] + k}
}

// Offset returns node - x in grid units for node Base+(i,j,k).
func (s *Stencil) Offset(i, j, k int, x r3.Vec) r3.Vec {
	return r3.Vec{
		X: float64(s.Base[0]+i) - x.X,
		Y: float64(s.Base[1]+j) - x.Y,
		Z: float64(s.Base[2]+k) - x.Z,
	}
}

// InBounds reports whether every node of the stencil lies inside a grid of
// the given dimensions.
func (s *Stencil) InBounds(dims [3]int) bool {
	for axis := 0; axis < 3; axis++ {
		if s.Base[axis] < 0 || s.Base[axis]+Support > dims[axis] {
			return false
		}
	}
	return true
}
