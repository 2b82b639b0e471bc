package linalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertMatInDelta(t *testing.T, want, got Mat3, delta float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want[i][j], got[i][j], delta, "entry (%d,%d)", i, j)
		}
	}
}

func TestMulIdentity(t *testing.T) {
	m := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 10}}
	assert.Equal(t, m, m.Mul(Identity()))
	assert.Equal(t, m, Identity().Mul(m))
}

func TestDetAndInverse(t *testing.T) {
	m := Mat3{{2, 0, 1}, {1, 3, 0}, {0, 1, 4}}
	det := m.Det()
	assert.InDelta(t, 25.0, det, 1e-12)

	inv := m.Inverse(1e-12)
	assertMatInDelta(t, Identity(), m.Mul(inv), 1e-12)

	invT := m.InverseTranspose(1e-12)
	assertMatInDelta(t, inv.T(), invT, 1e-12)
}

func TestInverseTransposeClampsDeterminant(t *testing.T) {
	singular := Mat3{{1, 0, 0}, {0, 0, 0}, {0, 0, 1}}
	invT := singular.InverseTranspose(1e-6)
	assert.True(t, invT.IsFinite())
}

func TestOuterAndMulVec(t *testing.T) {
	a := r3.Vec{X: 1, Y: 2, Z: 3}
	b := r3.Vec{X: 4, Y: 5, Z: 6}
	o := Outer(a, b)
	assert.Equal(t, 10.0, o[1][1])
	assert.Equal(t, 12.0, o[1][2])

	// (a bᵀ) c = a (b·c)
	c := r3.Vec{X: 1, Y: 0, Z: -1}
	got := o.MulVec(c)
	want := r3.Scale(r3.Dot(b, c), a)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
	assert.InDelta(t, want.Z, got.Z, 1e-12)
}

func TestTraceAndFrobenius(t *testing.T) {
	m := Mat3{{1, 2, 0}, {0, 3, 0}, {0, 0, -1}}
	assert.Equal(t, 3.0, m.Trace())
	assert.Equal(t, 15.0, m.FrobeniusSq())
	assert.InDelta(t, m.T().Mul(m).Trace(), m.FrobeniusSq(), 1e-12)
}

func TestSVDReconstruction(t *testing.T) {
	tests := []struct {
		name string
		f    Mat3
	}{
		{"identity", Identity()},
		{"stretch", Diag(3, 2, 0.5)},
		{"general", Mat3{{1.2, 0.3, -0.1}, {0.05, 0.9, 0.2}, {-0.3, 0.1, 1.1}}},
		{"shear", Mat3{{1, 0.8, 0}, {0, 1, 0}, {0, 0, 1}}},
		{"reflection", Diag(1, 1, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, sigma, v := SVD(tt.f)

			assert.GreaterOrEqual(t, u.Det(), 0.0)
			assert.GreaterOrEqual(t, v.Det(), 0.0)
			assert.InDelta(t, 1.0, u.Det(), 1e-9)
			assert.InDelta(t, 1.0, v.Det(), 1e-9)
			assert.GreaterOrEqual(t, sigma[0][0], sigma[1][1])

			assertMatInDelta(t, tt.f, u.Mul(sigma).Mul(v.T()), 1e-9)
		})
	}
}

func TestSVDReflectionCarriesSignInLastValue(t *testing.T) {
	u, s, v := SVDDiagonal(Diag(1, 1, -1))
	require.InDelta(t, 1.0, u.Det(), 1e-9)
	require.InDelta(t, 1.0, v.Det(), 1e-9)
	assert.InDelta(t, -1.0, s[2], 1e-9)
	assert.InDelta(t, -1.0, s[0]*s[1]*s[2], 1e-9)
}

func TestComposeMatchesSVD(t *testing.T) {
	f := Mat3{{0.9, 0.1, 0}, {0, 1.1, 0.2}, {0.1, 0, 1.0}}
	u, s, v := SVDDiagonal(f)
	assertMatInDelta(t, f, Compose(u, s, v), 1e-9)
}

func BenchmarkSVD(b *testing.B) {
	f := Mat3{{1.2, 0.3, -0.1}, {0.05, 0.9, 0.2}, {-0.3, 0.1, 1.1}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SVDDiagonal(f)
	}
}
