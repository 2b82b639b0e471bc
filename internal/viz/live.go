package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/experiment"
	"github.com/san-kum/mpmsim/internal/telemetry"
)

const (
	canvasWidth     = 72
	canvasHeight    = 30
	historyCapacity = 300
)

// frameMsg carries the result of one StepFrame call back to the UI.
type frameMsg struct {
	stats     experiment.FrameStats
	positions []r3.Vec
	err       error
}

// Model is the live particle view. Frames are computed in a tea.Cmd; at most
// one is in flight so the experiment is never touched concurrently.
type Model struct {
	ctx       context.Context
	exp       *experiment.Experiment
	perf      *telemetry.PerfCollector
	canvas    *Canvas
	camera    *Camera
	theme     Theme
	styles    styles
	running   bool
	stepping  bool
	resetNext bool
	finished  bool
	err       error
	last      experiment.FrameStats
	positions []r3.Vec
	kinetic   []float64
}

// NewModel wraps exp. perf may be nil.
func NewModel(ctx context.Context, exp *experiment.Experiment, perf *telemetry.PerfCollector) Model {
	theme := Themes[0]
	return Model{
		ctx:       ctx,
		exp:       exp,
		perf:      perf,
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		camera:    NewCamera(),
		theme:     theme,
		styles:    newStyles(theme),
		running:   true,
		stepping:  true,
		positions: exp.Simulator().Positions(),
		kinetic:   make([]float64, 0, historyCapacity),
	}
}

// Init starts the first frame. NewModel already marks it in flight.
func (m Model) Init() tea.Cmd {
	return frameCmd(m.ctx, m.exp)
}

func frameCmd(ctx context.Context, exp *experiment.Experiment) tea.Cmd {
	return func() tea.Msg {
		fs, err := exp.StepFrame(ctx)
		return frameMsg{stats: fs, positions: exp.Simulator().Positions(), err: err}
	}
}

func (m *Model) step() tea.Cmd {
	if m.stepping || m.finished || m.err != nil {
		return nil
	}
	m.stepping = true
	return frameCmd(m.ctx, m.exp)
}

func (m *Model) reset() {
	if err := m.exp.Reset(); err != nil {
		m.err = err
		return
	}
	m.finished = false
	m.err = nil
	m.last = experiment.FrameStats{}
	m.kinetic = m.kinetic[:0]
	m.positions = m.exp.Simulator().Positions()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
			if m.running {
				return m, m.step()
			}
		case "r":
			if m.stepping {
				m.resetNext = true
				return m, nil
			}
			m.reset()
			if m.running {
				return m, m.step()
			}
		case "t":
			m.theme = nextTheme(m.theme.Name)
			m.styles = newStyles(m.theme)
		case "f":
			m.camera.Front()
		case "o":
			m.camera.Ortho = !m.camera.Ortho
		case "left", "h":
			m.camera.RotateY(-0.1)
		case "right", "l":
			m.camera.RotateY(0.1)
		case "up", "k":
			m.camera.RotateX(-0.1)
		case "down", "j":
			m.camera.RotateX(0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		}

	case frameMsg:
		m.stepping = false
		if m.resetNext {
			m.resetNext = false
			m.reset()
			return m, m.nextStep()
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.last = msg.stats
		m.positions = msg.positions
		m.kinetic = append(m.kinetic, msg.stats.Kinetic)
		if len(m.kinetic) > historyCapacity {
			m.kinetic = m.kinetic[1:]
		}
		if m.exp.Frame() >= m.exp.Config().Frames {
			m.finished = true
			return m, nil
		}
		return m, m.nextStep()
	}
	return m, nil
}

func (m *Model) nextStep() tea.Cmd {
	if !m.running {
		return nil
	}
	return m.step()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.failed.Render("ERROR")
	case m.finished:
		return m.styles.running.Render("FINISHED")
	case !m.running:
		return m.styles.paused.Render("PAUSED")
	default:
		return m.styles.running.Render("RUNNING")
	}
}

func (m Model) row(label, value string) string {
	return m.styles.label.Render(label) + m.styles.value.Render(value) + "\n"
}

func (m Model) View() string {
	cfg := m.exp.Config()
	RenderParticles(m.canvas, m.camera, cfg.World.R3(), m.positions)
	canvasView := m.styles.canvas.Render(strings.TrimSuffix(m.canvas.String(), "\n"))

	var s strings.Builder
	s.WriteString(m.styles.header.Render(strings.ToUpper(cfg.Name)) + "\n")
	s.WriteString(m.status() + "\n\n")

	info := m.exp.Simulator().Info()
	s.WriteString(m.row("Frame", fmt.Sprintf("%d / %d", m.exp.Frame(), cfg.Frames)))
	s.WriteString(m.row("Time", fmt.Sprintf("%.3fs", m.exp.Time())))
	s.WriteString(m.row("Particles", fmt.Sprintf("%d", info.Particles)))
	s.WriteString(m.row("Model", cfg.Model+" / "+m.exp.Simulator().TransferScheme().String()))
	s.WriteString(m.row("Substeps", fmt.Sprintf("%d", m.last.Steps)))
	s.WriteString(m.row("Min dt", fmt.Sprintf("%.2e", m.last.MinDt)))
	s.WriteString(m.row("Max speed", fmt.Sprintf("%.3f", m.last.MaxVelocity)))
	s.WriteString(m.row("Kinetic", fmt.Sprintf("%.4e", m.last.Kinetic)))
	s.WriteString(m.row("Elastic", fmt.Sprintf("%.4e", m.last.Elastic)))
	s.WriteString(m.row("J range", fmt.Sprintf("%.3f .. %.3f", m.last.MinJ, m.last.MaxJ)))
	s.WriteString(m.row("Active nodes", fmt.Sprintf("%d / %d", m.last.ActiveNodes, info.GridSize)))
	if m.last.NegativeJ > 0 {
		s.WriteString(m.row("Negative J", m.styles.failed.Render(fmt.Sprintf("%d", m.last.NegativeJ))))
	}

	if m.perf != nil {
		ps := m.perf.Stats()
		s.WriteString(m.row("Substep", fmt.Sprintf("%dus (%.0f/s)", ps.AvgTickDuration.Microseconds(), ps.TicksPerSecond)))
		phases := ps.Phases()
		for _, p := range phases[:min(3, len(phases))] {
			s.WriteString(m.row("  "+p, fmt.Sprintf("%.1f%%", ps.PhasePct[p])))
		}
	}

	if len(m.kinetic) > 1 {
		chart := asciigraph.Plot(m.kinetic, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption("kinetic energy"))
		s.WriteString(m.styles.graph.Render(chart) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + m.styles.failed.Render(m.err.Error()) + "\n")
	}

	s.WriteString(m.styles.help.Render("space pause  r reset  q quit\narrows rotate  +/- zoom  f front  o ortho  t theme"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, m.styles.panel.Render(s.String()))
}
