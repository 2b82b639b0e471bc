// Package linalg provides the small dense 3x3 algebra used by the particle
// and grid kernels.
//
// [Mat3] is a value type so that per-particle tensors (deformation gradient,
// affine velocity matrix, stresses) live inline in particle structs and never
// allocate in the substep hot path. Vectors are gonum's [r3.Vec].
package linalg

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a row-major 3x3 matrix: m[row][col].
type Mat3 [3][3]float64

// Identity returns the 3x3 identity.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag returns a diagonal matrix with the given entries.
func Diag(a, b, c float64) Mat3 {
	return Mat3{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

// ScaledIdentity returns s*I.
func ScaledIdentity(s float64) Mat3 {
	return Diag(s, s, s)
}

// Outer returns the outer product a bᵀ.
func Outer(a, b r3.Vec) Mat3 {
	return Mat3{
		{a.X * b.X, a.X * b.Y, a.X * b.Z},
		{a.Y * b.X, a.Y * b.Y, a.Y * b.Z},
		{a.Z * b.X, a.Z * b.Y, a.Z * b.Z},
	}
}

func (m Mat3) Add(o Mat3) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += o[i][j]
		}
	}
	return m
}

func (m Mat3) Sub(o Mat3) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] -= o[i][j]
		}
	}
	return m
}

func (m Mat3) Scale(s float64) Mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= s
		}
	}
	return m
}

// Mul returns the matrix product m*o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// MulVec returns m*v.
func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// T returns the transpose.
func (m Mat3) T() Mat3 {
	return Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func (m Mat3) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Cofactor returns the cofactor matrix, so that m⁻ᵀ = Cofactor(m)/det(m).
func (m Mat3) Cofactor() Mat3 {
	return Mat3{
		{
			m[1][1]*m[2][2] - m[1][2]*m[2][1],
			m[1][2]*m[2][0] - m[1][0]*m[2][2],
			m[1][0]*m[2][1] - m[1][1]*m[2][0],
		},
		{
			m[0][2]*m[2][1] - m[0][1]*m[2][2],
			m[0][0]*m[2][2] - m[0][2]*m[2][0],
			m[0][1]*m[2][0] - m[0][0]*m[2][1],
		},
		{
			m[0][1]*m[1][2] - m[0][2]*m[1][1],
			m[0][2]*m[1][0] - m[0][0]*m[1][2],
			m[0][0]*m[1][1] - m[0][1]*m[1][0],
		},
	}
}

// InverseTranspose returns m⁻ᵀ with the determinant clamped below by minDet.
// Clamping keeps inverted or collapsed elements finite.
func (m Mat3) InverseTranspose(minDet float64) Mat3 {
	det := math.Max(m.Det(), minDet)
	return m.Cofactor().Scale(1 / det)
}

// Inverse returns m⁻¹ with the same determinant clamp as InverseTranspose.
func (m Mat3) Inverse(minDet float64) Mat3 {
	return m.InverseTranspose(minDet).T()
}

// FrobeniusSq returns Σ m_ij², i.e. tr(mᵀm).
func (m Mat3) FrobeniusSq() float64 {
	var s float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s += m[i][j] * m[i][j]
		}
	}
	return s
}

// Col returns column j as a vector.
func (m Mat3) Col(j int) r3.Vec {
	return r3.Vec{X: m[0][j], Y: m[1][j], Z: m[2][j]}
}

// Row returns row i as a vector.
func (m Mat3) Row(i int) r3.Vec {
	return r3.Vec{X: m[i][0], Y: m[i][1], Z: m[i][2]}
}

// IsFinite reports whether every entry is neither NaN nor ±Inf.
func (m Mat3) IsFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// ApproxEqual reports whether every entry of m and o differs by at most tol.
func (m Mat3) ApproxEqual(o Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-o[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// Component returns v's i-th coordinate (0=X, 1=Y, 2=Z).
func Component(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent returns v with its i-th coordinate replaced.
func SetComponent(v r3.Vec, i int, x float64) r3.Vec {
	switch i {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}
