package viz

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/experiment"
	"github.com/san-kum/jointsim/internal/solver"
)

const (
	width           = 72
	height          = 24
	historyCapacity = 300
	eventCapacity   = 6
	// residualLimit is where the gauge turns red.
	residualLimit = 0.05
)

type TickMsg time.Time

// ConfigMsg carries a reloaded config into the live view. A nil Config with a
// non-nil Err reports a failed reload.
type ConfigMsg struct {
	Config *config.Config
	Err    error
}

// Model steps an experiment once per tick and draws the world as a wireframe
// of body centres joined by their joints.
type Model struct {
	reg  *experiment.Registry
	opts []experiment.Option
	cfg  *config.Config
	exp  *experiment.Experiment
	ctx  context.Context

	canvas *Canvas
	camera *Camera
	theme  Theme
	styles styles

	report    solver.Report
	residuals []float64
	energies  []float64
	events    []string
	status    string
	err       error

	running  bool
	showHelp bool
}

// NewModel builds the experiment described by cfg. opts are forwarded to
// every rebuild, so recorders stay attached across resets.
func NewModel(reg *experiment.Registry, cfg *config.Config, opts ...experiment.Option) (Model, error) {
	m := Model{
		reg:       reg,
		opts:      opts,
		cfg:       cfg.Clone(),
		ctx:       context.Background(),
		canvas:    NewCanvas(width, height),
		camera:    NewCamera(),
		theme:     ThemeTerminal,
		styles:    newStyles(ThemeTerminal),
		residuals: make([]float64, 0, historyCapacity),
		energies:  make([]float64, 0, historyCapacity),
		running:   true,
	}
	if err := m.rebuild(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "n":
			if !m.running {
				m.step()
			}
		case "c":
			m.toggleCorrection()
		case "w":
			m.edit(func(c *config.Config) { c.Solver.WarmStart = !c.Solver.WarmStart })
		case "+", "=":
			m.edit(func(c *config.Config) { c.Solver.VelocityIterations = min(c.Solver.VelocityIterations+1, 100) })
		case "-", "_":
			m.edit(func(c *config.Config) { c.Solver.VelocityIterations = max(c.Solver.VelocityIterations-1, 1) })
		case "left", "h":
			m.camera.Orbit(-0.1, 0)
		case "right", "l":
			m.camera.Orbit(0.1, 0)
		case "up", "k":
			m.camera.Orbit(0, 0.1)
		case "down", "j":
			m.camera.Orbit(0, -0.1)
		case "z":
			m.camera.ZoomIn()
		case "Z":
			m.camera.ZoomOut()
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = newStyles(m.theme)
		case "s":
			m.saveSVG()
		case "?":
			m.showHelp = !m.showHelp
		}
	case ConfigMsg:
		m.apply(msg)
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) rebuild() error {
	exp, err := experiment.New(m.reg, m.cfg, m.opts...)
	if err != nil {
		return err
	}
	m.exp = exp
	m.report = solver.Report{}
	m.residuals = m.residuals[:0]
	m.energies = m.energies[:0]
	m.events = m.events[:0]
	m.err = nil
	m.frame()
	return nil
}

// frame fits the camera to the world origin and every body.
func (m *Model) frame() {
	pw, ph := m.canvas.Pixels()
	points := []mgl64.Vec3{{}}
	for _, b := range m.exp.GetSimulator().World().Bodies {
		points = append(points, b.Position)
	}
	m.camera.Frame(points, pw, ph)
}

func (m *Model) reset() {
	if err := m.rebuild(); err != nil {
		m.err = err
		return
	}
	m.status = "reset"
}

// step advances the experiment by one dt and records the history the charts
// draw from.
func (m *Model) step() {
	s := m.exp.GetSimulator()
	m.report = s.Step(m.ctx, m.cfg.Dt)

	w := s.World()
	m.residuals = push(m.residuals, w.Residual())
	m.energies = push(m.energies, w.KineticEnergy()+w.PotentialEnergy())

	for _, ev := range m.report.Events {
		line := fmt.Sprintf("%6.2fs %s %s", s.Time(), ev.Constraint.Kind(), ev.Kind)
		m.events = append(m.events, line)
	}
	if n := len(m.events); n > eventCapacity {
		m.events = m.events[n-eventCapacity:]
	}

	for _, b := range w.Bodies {
		if b.Valid() && !b.IsValid() {
			m.running = false
			m.err = fmt.Errorf("%w: body %q", dynamo.ErrInvalidState, b.Name)
			return
		}
	}
}

func push(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historyCapacity {
		history = history[1:]
	}
	return history
}

func (m *Model) toggleCorrection() {
	m.edit(func(c *config.Config) {
		if c.Solver.Correction == "post_stabilization" {
			c.Solver.Correction = "baumgarte"
		} else {
			c.Solver.Correction = "post_stabilization"
		}
	})
}

// edit applies fn to a copy of the config and pushes the solver section into
// the running experiment.
func (m *Model) edit(fn func(c *config.Config)) {
	next := m.cfg.Clone()
	fn(next)
	if err := m.exp.Reconfigure(next); err != nil {
		m.err = err
		return
	}
	m.cfg = next
	m.err = nil
}

// apply takes a reloaded config. Solver changes are hot-swapped; anything that
// changes the world forces a rebuild.
func (m *Model) apply(msg ConfigMsg) {
	if msg.Err != nil {
		m.err = msg.Err
		return
	}
	next := msg.Config.Clone()
	rebuild := next.Scenario != m.cfg.Scenario ||
		next.Seed != m.cfg.Seed ||
		next.Gravity != m.cfg.Gravity ||
		!reflect.DeepEqual(next.Scene, m.cfg.Scene)

	if rebuild {
		prev := m.cfg
		m.cfg = next
		if err := m.rebuild(); err != nil {
			m.cfg = prev
			m.err = err
			return
		}
		m.status = "reloaded " + next.Scenario
		return
	}
	if err := m.exp.Reconfigure(next); err != nil {
		m.err = err
		return
	}
	m.cfg = next
	m.err = nil
	m.status = "solver reconfigured"
}

// draw renders bodies and joints into the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	w := m.exp.GetSimulator().World()
	pw, ph := m.canvas.Pixels()

	if w.Contacts != nil {
		x0, y := m.camera.Project(mgl64.Vec3{-5, 0, 0}, pw, ph)
		x1, _ := m.camera.Project(mgl64.Vec3{5, 0, 0}, pw, ph)
		m.canvas.DashedLine(x0, x1, y, 3)
	}

	for _, j := range w.Joints {
		a, b := j.Bodies()
		ax, ay := m.camera.Project(centre(a), pw, ph)
		bx, by := m.camera.Project(centre(b), pw, ph)
		m.canvas.DrawLine(ax, ay, bx, by)
	}
	for _, b := range w.Bodies {
		if !b.Valid() {
			continue
		}
		x, y := m.camera.Project(b.Position, pw, ph)
		m.canvas.Cross(x, y, 2)
	}
}

// saveSVG writes the current frame into the working directory.
func (m *Model) saveSVG() {
	m.draw()
	name := fmt.Sprintf("%s_%.2fs.svg", m.cfg.Scenario, m.exp.GetSimulator().Time())
	svg := m.canvas.SVG(4, string(m.theme.Primary), "#0a0a0a")
	if err := os.WriteFile(name, []byte(svg), 0644); err != nil {
		m.err = err
		return
	}
	m.status = "saved " + name
}

// centre returns a body's position, or the origin for the world.
func centre(b *dynamo.Body) mgl64.Vec3 {
	if b == nil {
		return mgl64.Vec3{}
	}
	return b.Position
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	st := m.styles
	s := m.exp.GetSimulator()

	var b strings.Builder
	b.WriteString(st.header.Render(strings.ToUpper(m.cfg.Scenario)) + "\n")
	switch {
	case m.err != nil:
		b.WriteString(st.bad.Render("ERROR "+m.err.Error()) + "\n\n")
	case !m.running:
		b.WriteString(st.paused.Render("PAUSED") + "\n\n")
	default:
		b.WriteString(st.active.Render("RUNNING") + "\n\n")
	}

	if len(m.residuals) > 1 {
		chart := asciigraph.Plot(m.residuals, asciigraph.Height(4), asciigraph.Width(32), asciigraph.Caption("Residual"))
		b.WriteString(st.graph.Render(chart) + "\n")
	}
	if len(m.energies) > 1 {
		chart := asciigraph.Plot(m.energies, asciigraph.Height(4), asciigraph.Width(32), asciigraph.Caption("Energy"))
		b.WriteString(st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		b.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	residual := 0.0
	if n := len(m.residuals); n > 0 {
		residual = m.residuals[n-1]
	}
	row("Time", fmt.Sprintf("%.2fs", s.Time()))
	row("Joints", fmt.Sprintf("%d", len(s.World().Joints)))
	row("Molecules", fmt.Sprintf("%d", m.report.Molecules))
	row("Phases", fmt.Sprintf("%d", m.report.Phases))
	row("Step", m.report.Duration.String())
	b.WriteString(st.label.Render("Residual") + st.Gauge(residual, residualLimit, 12) + st.value.Render(fmt.Sprintf(" %.4f", residual)) + "\n")

	b.WriteString("\nSOLVER\n")
	row("Correction", m.cfg.Solver.Correction)
	row("Iterations", fmt.Sprintf("%d / %d", m.cfg.Solver.VelocityIterations, m.cfg.Solver.PositionIterations))
	row("Warm start", fmt.Sprintf("%t", m.cfg.Solver.WarmStart))

	if len(m.events) > 0 {
		b.WriteString("\nEVENTS\n")
		for _, e := range m.events {
			b.WriteString(st.warning.Render(e) + "\n")
		}
	}
	if m.status != "" {
		b.WriteString("\n" + st.label.Render(m.status) + "\n")
	}

	b.WriteString(st.help.Render("SP:Pause N:Step R:Reset Q:Quit\nC:Correction W:Warm +/-:Iter\nS:Save SVG T:Theme ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.stats.Render(b.String()))
	if m.showHelp {
		return st.help.Render(helpText) + "\n\n" + main
	}
	return main
}

const helpText = `Space   pause / resume
N       single step while paused
R       rebuild the scenario
C       toggle baumgarte / post stabilization
W       toggle warm starting
+ -     velocity iterations
←→↑↓    orbit camera
z Z     zoom
T       cycle themes
S       save the frame as SVG
Q       quit`

// Run starts the live view and blocks until the user quits. Messages sent on
// updates, e.g. from a config watcher, are forwarded to the model.
func Run(ctx context.Context, m Model, updates <-chan ConfigMsg) error {
	m.ctx = ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if updates != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-updates:
					if !ok {
						return
					}
					p.Send(msg)
				}
			}
		}()
	}
	_, err := p.Run()
	return err
}
