// Package optim sweeps scene parameters and ranks the runs by a metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
)

// Param is one swept parameter and the values it takes.
type Param struct {
	Name   string
	Values []float64
}

// ParseParam parses "name=v1,v2,...".
func ParseParam(s string) (Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Param{}, fmt.Errorf("parameter %q: want name=v1,v2,...", s)
	}
	var p Param
	p.Name = strings.TrimSpace(name)
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Param{}, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

// Trial is the outcome of one parameter combination.
type Trial struct {
	Params  map[string]float64
	Metrics map[string]float64
	Value   float64
	Err     error
}

type GridSearch struct {
	params []Param
	logger *slog.Logger
}

func NewGridSearch(logger *slog.Logger, params ...Param) *GridSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &GridSearch{params: params, logger: logger}
}

// Combinations enumerates the full grid, first parameter varying slowest.
func (g *GridSearch) Combinations() []map[string]float64 {
	combos := []map[string]float64{{}}
	for _, p := range g.params {
		next := make([]map[string]float64, 0, len(combos)*len(p.Values))
		for _, c := range combos {
			for _, v := range p.Values {
				m := make(map[string]float64, len(c)+1)
				for k, x := range c {
					m[k] = x
				}
				m[p.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// Search runs base with every combination applied and returns the trial
// minimizing metric along with all trials. Failed trials are kept with
// their error and never selected.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (Trial, []Trial, error) {
	combos := g.Combinations()
	trials := make([]Trial, 0, len(combos))
	best := Trial{Value: math.Inf(1)}
	found := false

	for i, params := range combos {
		if err := ctx.Err(); err != nil {
			return best, trials, err
		}
		t := g.runTrial(ctx, base, params, metric)
		trials = append(trials, t)
		if errors.Is(t.Err, context.Canceled) {
			return best, trials, t.Err
		}
		if t.Err != nil {
			g.logger.Warn("trial failed", "trial", i, "params", params, "err", t.Err)
			continue
		}
		g.logger.Info("trial", "trial", i, "params", params, metric, t.Value)
		if !math.IsNaN(t.Value) && t.Value < best.Value {
			best = t
			found = true
		}
	}

	if !found {
		return best, trials, fmt.Errorf("no successful trial for metric %s", metric)
	}
	return best, trials, nil
}

func (g *GridSearch) runTrial(ctx context.Context, base *config.Config, params map[string]float64, metric string) Trial {
	t := Trial{Params: params, Value: math.NaN()}
	cfg := base.Clone()
	for name, v := range params {
		if err := cfg.SetParam(name, v); err != nil {
			t.Err = err
			return t
		}
	}

	exp, err := experiment.Build(cfg, g.logger.With("sweep", true))
	if err != nil {
		t.Err = err
		return t
	}
	res, err := exp.Run(ctx, nil)
	if err != nil {
		t.Err = err
		return t
	}
	t.Metrics = res.Metrics
	v, ok := res.Metrics[metric]
	if !ok {
		t.Err = fmt.Errorf("unknown metric: %s", metric)
		return t
	}
	t.Value = v
	return t
}
