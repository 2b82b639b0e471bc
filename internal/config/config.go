package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultSpacing   = 0.05
	DefaultFrames    = 120
	DefaultFrameRate = 30.0
	DefaultMaxDt     = 1e-3
	DefaultCFL       = 0.5
	DefaultGravity   = -9.8
)

// Vec3 is a YAML-friendly 3-vector written as [x, y, z].
type Vec3 [3]float64

func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// Config describes one simulation scene.
type Config struct {
	Name       string                    `yaml:"name"`
	Model      string                    `yaml:"model"`
	Transfer   string                    `yaml:"transfer"`
	Plasticity PlasticityConfig          `yaml:"plasticity"`
	Gravity    Vec3                      `yaml:"gravity,flow"`
	World      Vec3                      `yaml:"world,flow"`
	H          float64                   `yaml:"h"`
	Frames     int                       `yaml:"frames"`
	FrameRate  float64                   `yaml:"frame_rate"`
	MaxDt      float64                   `yaml:"max_dt"`
	CFL        float64                   `yaml:"cfl"`
	Workers    int                       `yaml:"workers"`
	Materials  map[string]MaterialConfig `yaml:"materials"`
	Objects    []ObjectConfig            `yaml:"objects"`
	Collisions []CollisionConfig         `yaml:"collisions"`
}

type PlasticityConfig struct {
	Type        string             `yaml:"type"`
	PerParticle bool               `yaml:"per_particle"`
	Params      map[string]float64 `yaml:"params,omitempty"`
}

type MaterialConfig struct {
	YoungModulus float64 `yaml:"young_modulus"`
	PoissonRatio float64 `yaml:"poisson_ratio"`
	Mass         float64 `yaml:"mass"`
	Density      float64 `yaml:"density"`
}

// ObjectConfig places particles. Shape is "box", "sphere" or "file".
type ObjectConfig struct {
	Shape    string  `yaml:"shape"`
	Material string  `yaml:"material"`
	Center   Vec3    `yaml:"center,flow"`
	Size     Vec3    `yaml:"size,flow,omitempty"`
	Radius   float64 `yaml:"radius,omitempty"`
	Spacing  float64 `yaml:"spacing,omitempty"`
	Path     string  `yaml:"path,omitempty"`
	Velocity Vec3    `yaml:"velocity,flow"`
}

// CollisionConfig describes a static obstacle. Type is "half_space" or
// "sphere"; Mode is "sticky" or "slip".
type CollisionConfig struct {
	Type     string  `yaml:"type"`
	Mode     string  `yaml:"mode"`
	Friction float64 `yaml:"friction,omitempty"`
	Origin   Vec3    `yaml:"origin,flow,omitempty"`
	Normal   Vec3    `yaml:"normal,flow,omitempty"`
	Center   Vec3    `yaml:"center,flow,omitempty"`
	Radius   float64 `yaml:"radius,omitempty"`
}

// DefaultConfig returns a small elastic cube dropped on a slip floor.
func DefaultConfig() *Config {
	return &Config{
		Name:      "default",
		Model:     "neohookean",
		Transfer:  "apic",
		Gravity:   Vec3{0, DefaultGravity, 0},
		World:     Vec3{1, 1, 1},
		H:         DefaultSpacing,
		Frames:    DefaultFrames,
		FrameRate: DefaultFrameRate,
		MaxDt:     DefaultMaxDt,
		CFL:       DefaultCFL,
		Materials: map[string]MaterialConfig{
			"jello": {YoungModulus: 50, PoissonRatio: 0.3, Mass: 1.5625e-5, Density: 1},
		},
		Objects: []ObjectConfig{
			{Shape: "box", Material: "jello", Center: Vec3{0.5, 0.6, 0.5}, Size: Vec3{0.2, 0.2, 0.2}},
		},
		Collisions: []CollisionConfig{
			{Type: "half_space", Mode: "slip", Friction: 0.2, Origin: Vec3{0, 0.15, 0}, Normal: Vec3{0, 1, 0}},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	// Scene files replace the default scene contents rather than merging.
	cfg.Materials = nil
	cfg.Objects = nil
	cfg.Collisions = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Materials = make(map[string]MaterialConfig, len(c.Materials))
	for k, v := range c.Materials {
		out.Materials[k] = v
	}
	out.Objects = append([]ObjectConfig(nil), c.Objects...)
	out.Collisions = append([]CollisionConfig(nil), c.Collisions...)
	if c.Plasticity.Params != nil {
		out.Plasticity.Params = make(map[string]float64, len(c.Plasticity.Params))
		for k, v := range c.Plasticity.Params {
			out.Plasticity.Params[k] = v
		}
	}
	return &out
}

// FrameDuration returns the simulated time covered by one frame.
func (c *Config) FrameDuration() float64 {
	return 1 / c.FrameRate
}

// Validate reports every structural problem with the scene at once.
// Material constants and registry names are checked when the scene is built.
func (c *Config) Validate() error {
	var errs []error
	if c.H <= 0 {
		errs = append(errs, fmt.Errorf("h must be positive, got %g", c.H))
	}
	for i, w := range c.World {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("world[%d] must be positive, got %g", i, w))
		}
	}
	if c.Frames <= 0 {
		errs = append(errs, fmt.Errorf("frames must be positive, got %d", c.Frames))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive, got %g", c.FrameRate))
	}
	if c.MaxDt <= 0 {
		errs = append(errs, fmt.Errorf("max_dt must be positive, got %g", c.MaxDt))
	}
	if c.CFL <= 0 {
		errs = append(errs, fmt.Errorf("cfl must be positive, got %g", c.CFL))
	}
	if len(c.Objects) == 0 {
		errs = append(errs, errors.New("scene has no objects"))
	}
	if c.Plasticity.Type == "von_mises" && c.Plasticity.Params["yield_stress"] <= 0 {
		// A zero yield stress makes every deviatoric strain plastic.
		errs = append(errs, errors.New("von_mises plasticity needs a positive yield_stress"))
	}
	for i, o := range c.Objects {
		if _, ok := c.Materials[o.Material]; !ok {
			errs = append(errs, fmt.Errorf("object %d: unknown material %q", i, o.Material))
		}
		switch o.Shape {
		case "box":
			if o.Size[0] <= 0 || o.Size[1] <= 0 || o.Size[2] <= 0 {
				errs = append(errs, fmt.Errorf("object %d: box size must be positive", i))
			}
		case "sphere":
			if o.Radius <= 0 {
				errs = append(errs, fmt.Errorf("object %d: sphere radius must be positive", i))
			}
		case "file":
			if o.Path == "" {
				errs = append(errs, fmt.Errorf("object %d: file shape needs a path", i))
			}
		default:
			errs = append(errs, fmt.Errorf("object %d: unknown shape %q", i, o.Shape))
		}
	}
	for i, col := range c.Collisions {
		switch col.Type {
		case "half_space":
			if col.Normal == (Vec3{}) {
				errs = append(errs, fmt.Errorf("collision %d: half_space normal must be non-zero", i))
			}
		case "sphere":
			if col.Radius <= 0 {
				errs = append(errs, fmt.Errorf("collision %d: sphere radius must be positive", i))
			}
		default:
			errs = append(errs, fmt.Errorf("collision %d: unknown type %q", i, col.Type))
		}
	}
	return errors.Join(errs...)
}
