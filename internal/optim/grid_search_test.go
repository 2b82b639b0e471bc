package optim

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mpmsim/internal/config"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func tinyScene() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Frames = 1
	cfg.World = config.Vec3{0.5, 0.5, 0.5}
	cfg.Objects[0].Center = config.Vec3{0.25, 0.3, 0.25}
	cfg.Objects[0].Size = config.Vec3{0.1, 0.1, 0.1}
	cfg.Collisions[0].Origin = config.Vec3{0, 0.12, 0}
	return cfg
}

func TestParseParam(t *testing.T) {
	p, err := ParseParam("young_modulus=10, 50,1e2")
	require.NoError(t, err)
	assert.Equal(t, "young_modulus", p.Name)
	assert.Equal(t, []float64{10, 50, 100}, p.Values)

	for _, bad := range []string{"cfl", "=1", "cfl=", "cfl=a"} {
		_, err := ParseParam(bad)
		assert.Error(t, err, bad)
	}
}

func TestCombinations(t *testing.T) {
	g := NewGridSearch(quiet(),
		Param{Name: "a", Values: []float64{1, 2}},
		Param{Name: "b", Values: []float64{10, 20, 30}},
	)
	combos := g.Combinations()
	require.Len(t, combos, 6)
	assert.Equal(t, map[string]float64{"a": 1, "b": 10}, combos[0])
	assert.Equal(t, map[string]float64{"a": 2, "b": 30}, combos[5])

	assert.Len(t, NewGridSearch(quiet()).Combinations(), 1)
}

func TestSearch(t *testing.T) {
	g := NewGridSearch(quiet(), Param{Name: "young_modulus", Values: []float64{20, 80}})
	best, trials, err := g.Search(context.Background(), tinyScene(), "energy")
	require.NoError(t, err)
	require.Len(t, trials, 2)
	for _, tr := range trials {
		require.NoError(t, tr.Err)
		assert.GreaterOrEqual(t, tr.Value, best.Value)
	}
	assert.Contains(t, best.Metrics, "energy_drift")
}

func TestSearchFailures(t *testing.T) {
	g := NewGridSearch(quiet(), Param{Name: "poisson_ratio", Values: []float64{0.7}})
	_, trials, err := g.Search(context.Background(), tinyScene(), "energy")
	assert.Error(t, err)
	require.Len(t, trials, 1)
	assert.Error(t, trials[0].Err)

	g = NewGridSearch(quiet(), Param{Name: "cfl", Values: []float64{0.5}})
	_, _, err = g.Search(context.Background(), tinyScene(), "no_such_metric")
	assert.ErrorContains(t, err, "no successful trial")
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch(quiet(), Param{Name: "cfl", Values: []float64{0.3, 0.5}})
	_, trials, err := g.Search(ctx, tinyScene(), "energy")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, trials)
}
