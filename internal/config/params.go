package config

import (
	"fmt"
	"strings"
)

const plasticityPrefix = "plasticity."

// SetParam sets a numeric scene parameter by name. Material parameters
// apply to every material, friction to every collision object, and names
// prefixed with "plasticity." to the plasticity model parameters.
func (c *Config) SetParam(name string, v float64) error {
	if p, ok := strings.CutPrefix(name, plasticityPrefix); ok {
		if c.Plasticity.Params == nil {
			c.Plasticity.Params = make(map[string]float64)
		}
		c.Plasticity.Params[p] = v
		return nil
	}

	switch name {
	case "h":
		c.H = v
	case "cfl":
		c.CFL = v
	case "max_dt":
		c.MaxDt = v
	case "frame_rate":
		c.FrameRate = v
	case "gravity":
		c.Gravity = Vec3{0, v, 0}
	case "friction":
		for i := range c.Collisions {
			c.Collisions[i].Friction = v
		}
	case "young_modulus", "poisson_ratio", "mass", "density":
		for k, m := range c.Materials {
			switch name {
			case "young_modulus":
				m.YoungModulus = v
			case "poisson_ratio":
				m.PoissonRatio = v
			case "mass":
				m.Mass = v
			case "density":
				m.Density = v
			}
			c.Materials[k] = m
		}
	default:
		return fmt.Errorf("unknown scene parameter: %s", name)
	}
	return nil
}
