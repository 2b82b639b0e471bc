package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/physics"
	"github.com/san-kum/mpmsim/internal/sim"
)

type Registry struct {
	models     map[string]func() physics.ConstitutiveModel
	plasticity map[string]func() physics.Plasticity
}

func NewRegistry() *Registry {
	r := &Registry{
		models:     make(map[string]func() physics.ConstitutiveModel),
		plasticity: make(map[string]func() physics.Plasticity),
	}

	r.models["neohookean"] = func() physics.ConstitutiveModel { return physics.NeoHookean{} }
	r.models["neohookean_fluid"] = func() physics.ConstitutiveModel { return physics.NeoHookeanFluid{} }
	r.models["volume_penalty"] = func() physics.ConstitutiveModel { return physics.QuadraticVolumePenalty{} }
	r.models["mixed_fluid"] = func() physics.ConstitutiveModel { return physics.MixedPressureFluid{} }

	r.plasticity["von_mises"] = func() physics.Plasticity { return physics.NewVonMises(0, 0) }
	r.plasticity["snow"] = func() physics.Plasticity { return physics.NewSnow() }

	return r
}

func (r *Registry) GetModel(name string) (physics.ConstitutiveModel, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

// GetPlasticity builds the configured plasticity model. An empty type or
// "none" yields nil, which disables plasticity.
func (r *Registry) GetPlasticity(cfg config.PlasticityConfig) (physics.Plasticity, error) {
	if cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}
	fn, ok := r.plasticity[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown plasticity: %s", cfg.Type)
	}
	p := fn()

	switch m := p.(type) {
	case *physics.VonMises:
		m.PerParticle = cfg.PerParticle
	case *physics.Snow:
		m.PerParticle = cfg.PerParticle
	}

	if c, ok := p.(physics.Configurable); ok {
		names := make([]string, 0, len(cfg.Params))
		for name := range cfg.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := c.SetParam(name, cfg.Params[name]); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (r *Registry) GetTransfer(name string) (sim.TransferScheme, error) {
	return sim.ParseTransferScheme(name)
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListPlasticity() []string {
	return append([]string{"none"}, sortedKeys(r.plasticity)...)
}

func (r *Registry) DefaultMetrics() []metrics.Metric {
	return metrics.Defaults()
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
