package experiment

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

func latticeCount(extent, spacing float64) int {
	return max(1, int(math.Round(extent/spacing)))
}

// SampleBox fills an axis-aligned box with a regular lattice. Points sit at
// cell centers, so each represents a spacing³ volume.
func SampleBox(center, size r3.Vec, spacing float64) []r3.Vec {
	nx := latticeCount(size.X, spacing)
	ny := latticeCount(size.Y, spacing)
	nz := latticeCount(size.Z, spacing)
	lo := r3.Sub(center, r3.Scale(0.5*spacing, r3.Vec{X: float64(nx), Y: float64(ny), Z: float64(nz)}))

	pts := make([]r3.Vec, 0, nx*ny*nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				pts = append(pts, r3.Vec{
					X: lo.X + (float64(i)+0.5)*spacing,
					Y: lo.Y + (float64(j)+0.5)*spacing,
					Z: lo.Z + (float64(k)+0.5)*spacing,
				})
			}
		}
	}
	return pts
}

// SampleSphere keeps the lattice points of the bounding box that fall inside
// the ball.
func SampleSphere(center r3.Vec, radius, spacing float64) []r3.Vec {
	d := 2 * radius
	box := SampleBox(center, r3.Vec{X: d, Y: d, Z: d}, spacing)
	pts := box[:0]
	r2 := radius * radius
	for _, p := range box {
		if r3.Norm2(r3.Sub(p, center)) <= r2 {
			pts = append(pts, p)
		}
	}
	return pts
}

// Bounds returns the axis-aligned bounding box of pts.
func Bounds(pts []r3.Vec) r3.Box {
	if len(pts) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}
