package config

import "sort"

func floor(y, friction float64, mode string) CollisionConfig {
	return CollisionConfig{Type: "half_space", Mode: mode, Friction: friction, Origin: Vec3{0, y, 0}, Normal: Vec3{0, 1, 0}}
}

func scene(name, model string) *Config {
	return &Config{
		Name:      name,
		Model:     model,
		Transfer:  "apic",
		Gravity:   Vec3{0, DefaultGravity, 0},
		World:     Vec3{2, 2, 2},
		H:         DefaultSpacing,
		Frames:    DefaultFrames,
		FrameRate: DefaultFrameRate,
		MaxDt:     DefaultMaxDt,
		CFL:       DefaultCFL,
	}
}

// Presets holds the built-in scenes, keyed by name. Particle masses assume
// the default lattice spacing of h/2.
var Presets = map[string]*Config{
	"jello": func() *Config {
		c := scene("jello", "neohookean")
		c.Materials = map[string]MaterialConfig{
			"jello": {YoungModulus: 50, PoissonRatio: 0.3, Mass: 1.5625e-5, Density: 1},
		}
		c.Objects = []ObjectConfig{
			{Shape: "box", Material: "jello", Center: Vec3{1, 1.2, 1}, Size: Vec3{0.4, 0.4, 0.4}, Velocity: Vec3{0.5, 0, -0.3}},
		}
		c.Collisions = []CollisionConfig{floor(0.2, 0.3, "slip")}
		return c
	}(),
	"water": func() *Config {
		c := scene("water", "volume_penalty")
		c.Materials = map[string]MaterialConfig{
			"water": {YoungModulus: 1e5, PoissonRatio: 0.4, Mass: 1.5625e-2, Density: 1000},
		}
		c.Objects = []ObjectConfig{
			{Shape: "box", Material: "water", Center: Vec3{0.5, 0.6, 1}, Size: Vec3{0.5, 0.8, 1.2}},
		}
		c.Collisions = []CollisionConfig{
			floor(0.15, 0, "slip"),
			{Type: "half_space", Mode: "slip", Origin: Vec3{0.15, 0, 0}, Normal: Vec3{1, 0, 0}},
			{Type: "half_space", Mode: "slip", Origin: Vec3{1.85, 0, 0}, Normal: Vec3{-1, 0, 0}},
			{Type: "half_space", Mode: "slip", Origin: Vec3{0, 0, 0.15}, Normal: Vec3{0, 0, 1}},
			{Type: "half_space", Mode: "slip", Origin: Vec3{0, 0, 1.85}, Normal: Vec3{0, 0, -1}},
		}
		return c
	}(),
	"fluid": func() *Config {
		c := scene("fluid", "neohookean_fluid")
		c.Transfer = "flip95"
		c.Materials = map[string]MaterialConfig{
			"fluid": {YoungModulus: 1e4, PoissonRatio: 0.3, Mass: 1.5625e-2, Density: 1000},
		}
		c.Objects = []ObjectConfig{
			{Shape: "sphere", Material: "fluid", Center: Vec3{1, 1.2, 1}, Radius: 0.3},
		}
		c.Collisions = []CollisionConfig{floor(0.2, 0, "slip")}
		return c
	}(),
	"pressure": func() *Config {
		c := scene("pressure", "mixed_fluid")
		c.Transfer = "flip99"
		c.Materials = map[string]MaterialConfig{
			"fluid": {YoungModulus: 1e4, PoissonRatio: 0.3, Mass: 1.5625e-2, Density: 1000},
		}
		c.Objects = []ObjectConfig{
			{Shape: "box", Material: "fluid", Center: Vec3{1, 0.7, 1}, Size: Vec3{0.6, 0.6, 0.6}},
		}
		c.Collisions = []CollisionConfig{floor(0.2, 0, "sticky")}
		return c
	}(),
	"snow": func() *Config {
		c := scene("snow", "neohookean")
		c.Plasticity = PlasticityConfig{Type: "snow", PerParticle: true}
		c.Materials = map[string]MaterialConfig{
			"snow": {YoungModulus: 1.4e5, PoissonRatio: 0.2, Mass: 6.25e-3, Density: 400},
		}
		c.Objects = []ObjectConfig{
			{Shape: "sphere", Material: "snow", Center: Vec3{0.8, 1.0, 1}, Radius: 0.25, Velocity: Vec3{2, 0, 0}},
			{Shape: "sphere", Material: "snow", Center: Vec3{1.4, 1.05, 1}, Radius: 0.2, Velocity: Vec3{-2, 0, 0}},
		}
		c.Collisions = []CollisionConfig{floor(0.2, 0.5, "slip")}
		return c
	}(),
	"plastic": func() *Config {
		c := scene("plastic", "neohookean")
		c.Plasticity = PlasticityConfig{Type: "von_mises", PerParticle: true, Params: map[string]float64{"yield_stress": 20, "xi": 5}}
		c.Materials = map[string]MaterialConfig{
			"metal": {YoungModulus: 1e3, PoissonRatio: 0.3, Mass: 1.5625e-4, Density: 10},
		}
		c.Objects = []ObjectConfig{
			{Shape: "box", Material: "metal", Center: Vec3{1, 1.3, 1}, Size: Vec3{0.8, 0.1, 0.3}},
		}
		c.Collisions = []CollisionConfig{
			{Type: "sphere", Mode: "sticky", Center: Vec3{1, 0.8, 1}, Radius: 0.2},
			floor(0.2, 0.1, "slip"),
		}
		return c
	}(),
}

// GetPreset returns a copy of the named scene, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
