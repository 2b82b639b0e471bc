package linalg

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// svdScratch holds the gonum workspaces for one decomposition.
type svdScratch struct {
	a, u, v *mat.Dense
	svd     mat.SVD
	values  []float64
}

var scratchPool = sync.Pool{
	New: func() interface{} {
		return &svdScratch{
			a:      mat.NewDense(3, 3, nil),
			u:      mat.NewDense(3, 3, nil),
			v:      mat.NewDense(3, 3, nil),
			values: make([]float64, 3),
		}
	},
}

// SVDDiagonal decomposes f = U·diag(σ)·Vᵀ with rotations U and V.
//
// The result is canonicalized: when det(U) < 0 its last column and σ[2] are
// negated, likewise for V, and if σ[0] < σ[1] the two values are swapped
// without swapping the matching columns of U and V. The last step means the
// product no longer reconstructs f in that case; plasticity models rely on
// this exact ordering.
func SVDDiagonal(f Mat3) (u Mat3, sigma [3]float64, v Mat3) {
	s := scratchPool.Get().(*svdScratch)
	defer scratchPool.Put(s)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.a.Set(i, j, f[i][j])
		}
	}

	if !s.svd.Factorize(s.a, mat.SVDFull) {
		return Identity(), [3]float64{f[0][0], f[1][1], f[2][2]}, Identity()
	}
	s.svd.Values(s.values)
	s.svd.UTo(s.u)
	s.svd.VTo(s.v)

	for i := 0; i < 3; i++ {
		sigma[i] = s.values[i]
		for j := 0; j < 3; j++ {
			u[i][j] = s.u.At(i, j)
			v[i][j] = s.v.At(i, j)
		}
	}

	if u.Det() < 0 {
		for i := 0; i < 3; i++ {
			u[i][2] = -u[i][2]
		}
		sigma[2] = -sigma[2]
	}
	if v.Det() < 0 {
		for i := 0; i < 3; i++ {
			v[i][2] = -v[i][2]
		}
		sigma[2] = -sigma[2]
	}
	if sigma[0] < sigma[1] {
		sigma[0], sigma[1] = sigma[1], sigma[0]
	}
	return u, sigma, v
}

// SVD is SVDDiagonal with Σ returned as a full diagonal matrix.
func SVD(f Mat3) (u, sigma, v Mat3) {
	u, s, v := SVDDiagonal(f)
	return u, Diag(s[0], s[1], s[2]), v
}

// Compose returns U·diag(σ)·Vᵀ.
func Compose(u Mat3, sigma [3]float64, v Mat3) Mat3 {
	return u.Mul(Diag(sigma[0], sigma[1], sigma[2])).Mul(v.T())
}
