package collision

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mode selects how velocities inside an obstacle are treated.
type Mode int

const (
	// Sticky zeroes the whole velocity.
	Sticky Mode = iota
	// Slip removes the approaching normal component and applies Coulomb
	// friction to the tangential remainder.
	Slip
)

func (m Mode) String() string {
	switch m {
	case Sticky:
		return "sticky"
	case Slip:
		return "slip"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "sticky" or "slip", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "sticky", "":
		return Sticky, nil
	case "slip":
		return Slip, nil
	default:
		return 0, fmt.Errorf("collision: unknown mode %q", s)
	}
}

// Object pairs a level set with a boundary condition.
type Object struct {
	Shape    LevelSet
	Mode     Mode
	Friction float64
}

// NewObject returns an obstacle with the given boundary condition.
func NewObject(shape LevelSet, mode Mode, friction float64) *Object {
	return &Object{Shape: shape, Mode: mode, Friction: friction}
}

// Resolve returns v corrected against the obstacle at position x.
// Velocities of points outside the obstacle are returned unchanged.
func (o *Object) Resolve(x, v r3.Vec) r3.Vec {
	if !o.Shape.Inside(x) {
		return v
	}
	if o.Mode == Sticky {
		return r3.Vec{}
	}

	n := o.Shape.Normal(x)
	vn := r3.Dot(v, n)
	if vn >= 0 {
		return v
	}
	v = r3.Sub(v, r3.Scale(vn, n))

	if o.Friction != 0 {
		speed := r3.Norm(v)
		if speed > 0 && speed > -o.Friction*vn {
			v = r3.Add(v, r3.Scale(o.Friction*vn/speed, v))
		} else {
			v = r3.Vec{}
		}
	}
	return v
}
