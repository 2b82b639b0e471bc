// Package export renders particle frames and run statistics as SVG.
package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/viz"
)

const background = "#0a0a0a"

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// CanvasToSVG draws every lit braille dot of canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Dots()

	var sb strings.Builder
	header(&sb, int(float64(w)*scale), int(float64(h)*scale))
	sb.WriteString(`<g fill="#00ff00">` + "\n")
	r := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n",
					(float64(x)+0.5)*scale, (float64(y)+0.5)*scale, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// ParticlesToSVG projects positions through cam and draws them back to
// front, shading by depth.
func ParticlesToSVG(positions []r3.Vec, world r3.Vec, cam *viz.Camera, width, height int) string {
	norm := viz.NewNormalizer(world)

	type dot struct {
		x, y  int
		depth float64
	}
	dots := make([]dot, 0, len(positions))
	for _, p := range positions {
		q := norm.Apply(p)
		if x, y, ok := cam.Project(q, width, height); ok {
			dots = append(dots, dot{x, y, q.Z})
		}
	}
	sort.Slice(dots, func(i, j int) bool { return dots[i].depth < dots[j].depth })

	var sb strings.Builder
	header(&sb, width, height)
	r := math.Max(0.75, float64(min(width, height))/400)
	for _, d := range dots {
		// Depth in [-0.5, 0.5] maps to brightness.
		shade := int(120 + 135*math.Min(1, math.Max(0, d.depth+0.5)))
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%.2f" fill="rgb(%d,%d,255)"/>`+"\n", d.x, d.y, r, shade/2, shade)
	}
	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG draws values against their index as a polyline.
func SeriesToSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2
	stepX := float64(width) / float64(len(values)-1)

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i, v := range values {
		x := float64(i) * stepX
		y := float64(height) - (v-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
