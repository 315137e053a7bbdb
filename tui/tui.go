// Package tui is the Bubble Tea front end: a map of the current area
// repainted once per frame from the redraw queue, a message log, and a
// command line.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/tilecore/engine/play"
	"github.com/nathoo/tilecore/types"
)

// DefaultFrameInterval is used when New gets a zero interval.
const DefaultFrameInterval = 33 * time.Millisecond

// rawLine stores an unstyled log line so it can be re-wrapped and
// re-styled when the terminal is resized.
type rawLine struct {
	text    string
	isInput bool // echoed player input
}

// Model is the Bubble Tea model.
type Model struct {
	ctx      context.Context
	session  *play.Session
	interval time.Duration

	viewport viewport.Model
	input    textinput.Model
	history  *History
	typing   bool

	rawLines []rawLine
	view     *types.AreaState // last painted snapshot of the current area
	frames   int              // frames that repainted something

	width    int
	height   int
	ready    bool
	quitting bool
}

// frameMsg fires once per frame interval.
type frameMsg time.Time

// New creates a model driving s. The map is repainted at most once per
// interval.
func New(ctx context.Context, s *play.Session, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		ctx:      ctx,
		session:  s,
		interval: interval,
		input:    ti,
		history:  NewHistory(100),
	}
}

// Run starts the Bubble Tea program.
func Run(ctx context.Context, s *play.Session, interval time.Duration) error {
	intro, err := s.Start(ctx)
	if err != nil {
		return err
	}
	m := New(ctx, s, interval)
	m = m.appendOutput("", intro)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// Init starts the frame clock.
func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update handles key presses, resizes and frame ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case frameMsg:
		m = m.frame()
		return m, m.nextFrame()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.typing {
			return m.updateTyping(msg)
		}
		return m.updateWalking(msg)
	}
	return m, nil
}

// frame drains the redraw queue and repaints the map if the current area
// was redrawn or the player changed areas.
func (m Model) frame() Model {
	s := m.session
	repaint := m.view == nil || m.view.Path != s.Area
	for _, a := range s.Engine.Frame() {
		if a.Path() == s.Area {
			repaint = true
		}
	}
	if !repaint {
		return m
	}
	a, err := s.Engine.World.Area(m.ctx, s.Area)
	if err != nil {
		return m.appendOutput("", []string{"[Repaint failed: " + err.Error() + "]"})
	}
	st, err := a.Snapshot(m.ctx)
	if err != nil {
		// Still dirty as far as the player can see; retry next frame.
		a.RequestRedraw()
		return m.appendOutput("", []string{"[Repaint failed: " + err.Error() + "]"})
	}
	resized := m.view == nil || m.view.Height != st.Height
	m.view = st
	m.frames++
	if resized && m.width > 0 {
		m.layout()
	}
	return m
}

// layout sizes the log to whatever the map, status bar and input line
// leave free.
func (m *Model) layout() {
	logHeight := m.height - m.mapHeight() - 2
	if logHeight < 1 {
		logHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, logHeight)
		m.viewport.KeyMap = viewportKeyMap()
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = logHeight
	}
	m.refreshViewport()
}

var walkKeys = map[string]string{
	"up": "n", "k": "n",
	"down": "s", "j": "s",
	"left": "w", "h": "w",
	"right": "e", "l": "e",
	"u": "use", " ": "use", "enter": "use",
	".": "look",
}

func (m Model) updateWalking(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "/", ":":
		m.typing = true
		m.input.SetValue(strings.TrimPrefix(msg.String(), ":"))
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	cmd, ok := walkKeys[msg.String()]
	if !ok {
		return m, nil
	}
	return m.exec(cmd, false)
}

func (m Model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.typing = false
		m.input.SetValue("")
		m.input.Blur()
		m.history.ResetCursor()
		return m, nil

	case "enter":
		input := strings.TrimSpace(m.input.Value())
		m.typing = false
		m.input.SetValue("")
		m.input.Blur()
		if input == "" {
			return m, nil
		}
		m.history.Push(input)
		m.history.ResetCursor()
		return m.exec(input, true)

	case "up":
		if prev, ok := m.history.Prev(m.input.Value()); ok {
			m.input.SetValue(prev)
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if next, ok := m.history.Next(); ok {
			m.input.SetValue(next)
			m.input.CursorEnd()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// exec runs one command through the session.
func (m Model) exec(input string, echo bool) (tea.Model, tea.Cmd) {
	res := m.session.Exec(m.ctx, input)
	echoed := ""
	if echo {
		echoed = input
	}
	m = m.appendOutput(echoed, res.Output)
	if res.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// appendOutput adds lines to the log and refreshes the viewport.
func (m Model) appendOutput(input string, lines []string) Model {
	if input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	}
	for _, line := range lines {
		m.rawLines = append(m.rawLines, rawLine{text: line})
	}
	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.width
	if width < 10 {
		width = 10
	}
	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		wrapped := wordWrap(rl.text, width)
		if rl.isInput {
			styled = append(styled, stylePlayerInput.Render(wrapped))
			continue
		}
		styled = append(styled, renderLineKind(wrapped, classifyLine(rl.text)))
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within width, breaking at word boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		switch {
		case i == 0:
			lineLen = len(word)
		case lineLen+1+len(word) > width:
			b.WriteString("\n")
			lineLen = len(word)
		default:
			b.WriteString(" ")
			lineLen += 1 + len(word)
		}
		b.WriteString(word)
	}
	return b.String()
}

func (m Model) mapHeight() int {
	if m.view == nil {
		return 0
	}
	return m.view.Height + 2 // border
}

// View renders map, log, status bar and command line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	if m.view != nil {
		a, ok := m.session.Engine.World.Lookup(m.view.Path)
		if ok {
			b.WriteString(renderMap(m.view, a, m.session.X, m.session.Y))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	if m.typing {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(styleHint.Render("arrows/hjkl move  u use  / command  q quit"))
	}
	return b.String()
}

// viewportKeyMap keeps only paging; arrows move the player.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithDisabled()),
		HalfPageUp:   key.NewBinding(key.WithDisabled()),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
