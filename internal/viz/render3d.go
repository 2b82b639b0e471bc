package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera projects scene coordinates onto a canvas. Points are first mapped
// into a unit cube centered on the origin, so the camera is independent of
// world size.
type Camera struct {
	RotX, RotY float64
	Zoom       float64
	Distance   float64
	Ortho      bool
}

func NewCamera() *Camera {
	return &Camera{RotX: -0.35, RotY: 0.6, Zoom: 1, Distance: 3}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Front resets the camera to an orthographic view down the -Z axis.
func (c *Camera) Front() {
	c.RotX, c.RotY, c.Zoom, c.Ortho = 0, 0, 1, true
}

func (c *Camera) rotate(p r3.Vec) r3.Vec {
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	return p
}

// Project maps a point in the unit cube to sub-pixel coordinates on a
// w x h dot canvas. It reports false for points behind the camera or off
// the canvas.
func (c *Camera) Project(p r3.Vec, w, h int) (int, int, bool) {
	rot := r3.Scale(c.Zoom, c.rotate(p))
	scale := 1.0
	if !c.Ortho {
		if rot.Z >= c.Distance-0.1 {
			return 0, 0, false
		}
		scale = c.Distance / (c.Distance - rot.Z)
	}
	size := math.Min(float64(w), float64(h)) * 0.9
	sx := int(math.Round(rot.X*scale*size)) + w/2
	sy := int(math.Round(-rot.Y*scale*size)) + h/2
	return sx, sy, sx >= 0 && sx < w && sy >= 0 && sy < h
}

// Normalizer maps world coordinates in [0, world] into the unit cube
// centered on the origin, preserving aspect ratio.
type Normalizer struct {
	center r3.Vec
	inv    float64
}

func NewNormalizer(world r3.Vec) Normalizer {
	extent := math.Max(world.X, math.Max(world.Y, world.Z))
	if extent <= 0 {
		extent = 1
	}
	return Normalizer{center: r3.Scale(0.5, world), inv: 1 / extent}
}

func (n Normalizer) Apply(p r3.Vec) r3.Vec {
	return r3.Scale(n.inv, r3.Sub(p, n.center))
}

// boxEdges lists the 12 edges of the box [0, world].
func boxEdges(world r3.Vec) [12][2]r3.Vec {
	v := [8]r3.Vec{
		{}, {X: world.X}, {X: world.X, Y: world.Y}, {Y: world.Y},
		{Z: world.Z}, {X: world.X, Z: world.Z}, world, {Y: world.Y, Z: world.Z},
	}
	idx := [12][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	var edges [12][2]r3.Vec
	for i, e := range idx {
		edges[i] = [2]r3.Vec{v[e[0]], v[e[1]]}
	}
	return edges
}

// RenderParticles draws the domain outline and every particle onto c.
func RenderParticles(c *Canvas, cam *Camera, world r3.Vec, positions []r3.Vec) {
	c.Clear()
	w, h := c.Dots()
	norm := NewNormalizer(world)

	for _, e := range boxEdges(world) {
		x0, y0, ok0 := cam.Project(norm.Apply(e[0]), w, h)
		x1, y1, ok1 := cam.Project(norm.Apply(e[1]), w, h)
		if ok0 && ok1 {
			c.DrawLine(x0, y0, x1, y1)
		}
	}
	for _, p := range positions {
		if x, y, ok := cam.Project(norm.Apply(p), w, h); ok {
			c.Set(x, y)
		}
	}
}
