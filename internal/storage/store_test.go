package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/config"
)

func TestStoreRunLifecycle(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	cfg := config.DefaultConfig()
	run, err := st.Create(cfg, 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.ID(), "default_"))

	pts := []r3.Vec{{X: 0.1, Y: 0.2, Z: 0.3}, {X: 0.4, Y: 0.5, Z: 0.6}}
	require.NoError(t, run.WriteFrame(FrameRecord{Frame: 0, Time: 1.0 / 30, Steps: 34, Kinetic: 1.5}, pts))
	require.NoError(t, run.WriteFrame(FrameRecord{Frame: 1, Time: 2.0 / 30, Steps: 34, Kinetic: 1.2}, nil))
	require.NoError(t, run.Close(map[string]float64{"energy_drift": 0.01}, 2*time.Second))

	meta, err := st.Load(run.ID())
	require.NoError(t, err)
	assert.Equal(t, "neohookean", meta.Model)
	assert.Equal(t, 2, meta.Particles)
	assert.Equal(t, 2, meta.Frames)
	assert.True(t, meta.Complete)
	assert.InDelta(t, 2.0, meta.Elapsed, 1e-9)
	assert.InDelta(t, 0.01, meta.Metrics["energy_drift"], 1e-12)

	stats, err := st.LoadStats(run.ID())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 34, stats[0].Steps)
	assert.InDelta(t, 1.2, stats[1].Kinetic, 1e-12)

	frame, err := st.LoadFrame(run.ID(), 0)
	require.NoError(t, err)
	require.Len(t, frame, 2)
	assert.InDelta(t, 0.5, frame[1].Y, 1e-12)

	_, err = st.LoadFrame(run.ID(), 1)
	assert.Error(t, err, "frame 1 was not dumped")

	scene, err := st.LoadConfig(run.ID())
	require.NoError(t, err)
	assert.Equal(t, cfg.Objects, scene.Objects)
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, st.Init())
	a, err := st.Create(config.GetPreset("jello"), 10)
	require.NoError(t, err)
	require.NoError(t, a.Close(nil, 0))
	b, err := st.Create(config.GetPreset("snow"), 20)
	require.NoError(t, err)
	require.NoError(t, b.Close(nil, 0))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "junk"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Timestamp.Before(runs[1].Timestamp))
}

func TestLoadMissingRun(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	_, err = st.LoadStats("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestParsePoints(t *testing.T) {
	src := `# cube corners
v 0 0 0
vn 0 1 0
v 1.5 -2 3e-1

f 1 2 3
`
	pts, err := ParsePoints(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, r3.Vec{X: 1.5, Y: -2, Z: 0.3}, pts[1])

	_, err = ParsePoints(strings.NewReader("v 1 2\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ParsePoints(strings.NewReader("v 1 2 x\n"))
	assert.Error(t, err)
}

func TestReadPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bunny.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0.1 0.2 0.3\n"), 0644))

	pts, err := ReadPoints(path)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{X: 0.1, Y: 0.2, Z: 0.3}}, pts)

	_, err = ReadPoints(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}

func TestExportFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, ExportFrame(path, []r3.Vec{{X: 1, Y: 2, Z: 3}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,x,y,z\n"))
}
