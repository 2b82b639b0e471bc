package viz

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/telemetry"
)

func TestCanvasSetUnset(t *testing.T) {
	c := NewCanvas(2, 1)
	w, h := c.Dots()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)

	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	assert.True(t, c.IsSet(0, 0))
	assert.True(t, c.IsSet(3, 3))
	assert.Equal(t, "⠁⢀\n", c.String())

	c.Unset(0, 0)
	assert.False(t, c.IsSet(0, 0))
	c.Clear()
	assert.Equal(t, "⠀⠀\n", c.String())
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(4, 1)
	c.DrawLine(0, 0, 7, 0)
	for x := 0; x < 8; x++ {
		assert.True(t, c.IsSet(x, 0), "x=%d", x)
	}
	assert.False(t, c.IsSet(0, 1))

	c.Clear()
	c.DrawLine(0, 3, 3, 0)
	assert.True(t, c.IsSet(0, 3))
	assert.True(t, c.IsSet(3, 0))
	assert.True(t, c.IsSet(1, 2))
}

func TestCameraFrontProjection(t *testing.T) {
	cam := NewCamera()
	cam.Front()

	x, y, ok := cam.Project(r3.Vec{}, 100, 100)
	require.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 50, y)

	// +Y is up on screen.
	_, yUp, ok := cam.Project(r3.Vec{Y: 0.25}, 100, 100)
	require.True(t, ok)
	assert.Less(t, yUp, 50)

	_, _, ok = cam.Project(r3.Vec{X: 5}, 100, 100)
	assert.False(t, ok)
}

func TestCameraBehind(t *testing.T) {
	cam := &Camera{Zoom: 1, Distance: 3}
	_, _, ok := cam.Project(r3.Vec{Z: 3}, 100, 100)
	assert.False(t, ok)
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(r3.Vec{X: 2, Y: 1, Z: 1})
	assert.Equal(t, r3.Vec{}, n.Apply(r3.Vec{X: 1, Y: 0.5, Z: 0.5}))
	assert.Equal(t, r3.Vec{X: 0.5, Y: -0.25, Z: -0.25}, n.Apply(r3.Vec{X: 2}))
}

func TestRenderParticles(t *testing.T) {
	c := NewCanvas(20, 10)
	cam := NewCamera()
	cam.Front()
	world := r3.Vec{X: 1, Y: 1, Z: 1}

	RenderParticles(c, cam, world, []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})
	w, h := c.Dots()
	assert.True(t, c.IsSet(w/2, h/2))
}

func TestThemes(t *testing.T) {
	assert.Equal(t, "retro", GetTheme("retro").Name)
	assert.Equal(t, Themes[0].Name, GetTheme("unknown").Name)
	assert.Equal(t, Themes[0].Name, nextTheme(Themes[len(Themes)-1].Name).Name)
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Frames = 2
	cfg.World = config.Vec3{0.5, 0.5, 0.5}
	cfg.Objects[0].Center = config.Vec3{0.25, 0.3, 0.25}
	cfg.Objects[0].Size = config.Vec3{0.1, 0.1, 0.1}
	cfg.Collisions[0].Origin = config.Vec3{0, 0.12, 0}

	exp, err := experiment.Build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return NewModel(context.Background(), exp, telemetry.NewPerfCollector(10))
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModelStepsUntilFinished(t *testing.T) {
	m := newTestModel(t)
	cmd := m.Init()
	require.NotNil(t, cmd)

	var model tea.Model = m
	for i := 0; i < 2; i++ {
		msg := cmd()
		model, cmd = model.Update(msg)
	}
	lm := model.(Model)
	assert.Nil(t, cmd)
	assert.True(t, lm.finished)
	assert.Len(t, lm.kinetic, 2)
	assert.Equal(t, 1, lm.last.Frame)
	assert.Contains(t, lm.View(), "FINISHED")
}

func TestModelPauseAndReset(t *testing.T) {
	m := newTestModel(t)
	cmd := m.Init()

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	lm := model.(Model)
	assert.False(t, lm.running)

	// The in-flight frame lands but no new one is scheduled while paused.
	model, next := lm.Update(cmd())
	lm = model.(Model)
	assert.Nil(t, next)
	assert.Equal(t, 1, lm.exp.Frame())

	model, next = lm.Update(runeKey('r'))
	lm = model.(Model)
	assert.Nil(t, next)
	assert.Equal(t, 0, lm.exp.Frame())
	assert.Empty(t, lm.kinetic)
	assert.Contains(t, lm.View(), "PAUSED")
}

func TestModelResetWhileStepping(t *testing.T) {
	m := newTestModel(t)
	cmd := m.Init()

	model, next := m.Update(runeKey('r'))
	lm := model.(Model)
	assert.Nil(t, next)
	assert.True(t, lm.resetNext)

	model, next = lm.Update(cmd())
	lm = model.(Model)
	assert.False(t, lm.resetNext)
	assert.Equal(t, 0, lm.exp.Frame())
	assert.NotNil(t, next, "running model schedules the next frame")
}

func TestModelQuitAndTheme(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(runeKey('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	model, _ := m.Update(runeKey('t'))
	assert.Equal(t, Themes[1].Name, model.(Model).theme.Name)
}

func TestModelView(t *testing.T) {
	m := newTestModel(t)
	view := m.View()
	assert.Contains(t, view, "DEFAULT")
	assert.Contains(t, view, "RUNNING")
	assert.True(t, strings.ContainsRune(view, '⠀'))
}
