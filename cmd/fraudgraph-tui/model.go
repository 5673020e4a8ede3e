package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
)

const (
	refreshTimeout = 15 * time.Second
	panelWidth     = 42
	minCanvas      = 10
)

// graphEngine is the part of the engine the terminal view drives.
type graphEngine interface {
	View() engine.View
	Hover(id string) error
	Unhover()
	Select(id string) (uint64, error)
	ClearSelection()
	SetRelaxation(enabled bool)
	Relaxation() bool
	RefreshNow(ctx context.Context) (feed.Outcome, error)
}

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Select  key.Binding
	Clear   key.Binding
	Force   key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Select, k.Force, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Select, k.Clear},
		{k.Force, k.Refresh, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("right", "down", "tab", "l", "j"),
		key.WithHelp("→/tab", "next node"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "up", "shift+tab", "h", "k"),
		key.WithHelp("←/shift+tab", "previous node"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "explain"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	Force: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "toggle force"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// viewMsg carries a view published on one subscription.
type viewMsg struct {
	stream int
	view   engine.View
}

type streamClosedMsg struct{ stream int }

type refreshDoneMsg struct {
	outcome feed.Outcome
	err     error
}

type model struct {
	eng     graphEngine
	streams []<-chan engine.View
	view    engine.View

	width, height int
	hovered       string
	message       string

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

func newModel(eng graphEngine, streams ...<-chan engine.View) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = hoverStyle
	return model{
		eng:     eng,
		streams: streams,
		view:    eng.View(),
		width:   80,
		height:  24,
		keys:    keys,
		help:    help.New(),
		spinner: sp,
	}
}

func waitForView(stream int, ch <-chan engine.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return streamClosedMsg{stream: stream}
		}
		return viewMsg{stream: stream, view: v}
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	for i, ch := range m.streams {
		cmds = append(cmds, waitForView(i, ch))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case viewMsg:
		m.setView(msg.view)
		return m, waitForView(msg.stream, m.streams[msg.stream])

	case streamClosedMsg:
		m.message = "engine stopped"
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.message = "refresh: " + msg.err.Error()
		} else {
			m.message = fmt.Sprintf("refresh: %s", msg.outcome.Kind)
		}
		m.view = m.eng.View()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Next):
		m.cycleHover(1)

	case key.Matches(msg, m.keys.Prev):
		m.cycleHover(-1)

	case key.Matches(msg, m.keys.Select):
		if m.hovered == "" {
			m.message = "nothing hovered"
			break
		}
		if _, err := m.eng.Select(m.hovered); err != nil {
			m.message = err.Error()
		} else {
			m.message = ""
		}

	case key.Matches(msg, m.keys.Clear):
		m.eng.ClearSelection()
		m.eng.Unhover()
		m.hovered = ""

	case key.Matches(msg, m.keys.Force):
		m.eng.SetRelaxation(!m.eng.Relaxation())

	case key.Matches(msg, m.keys.Refresh):
		m.message = "refreshing"
		return m, m.refresh()
	}

	m.view = m.eng.View()
	return m, nil
}

func (m model) refresh() tea.Cmd {
	eng := m.eng
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		out, err := eng.RefreshNow(ctx)
		return refreshDoneMsg{outcome: out, err: err}
	}
}

// cycleHover moves the hover by step through the displayed nodes.
func (m *model) cycleHover(step int) {
	nodes := m.view.Nodes
	if len(nodes) == 0 {
		return
	}
	idx := m.hoveredIndex()
	switch {
	case idx < 0 && step > 0:
		idx = 0
	case idx < 0:
		idx = len(nodes) - 1
	default:
		idx = (idx + step + len(nodes)) % len(nodes)
	}
	id := nodes[idx].ID
	if err := m.eng.Hover(id); err != nil {
		m.message = err.Error()
		return
	}
	m.hovered = id
}

func (m model) hoveredIndex() int {
	for i, n := range m.view.Nodes {
		if n.ID == m.hovered {
			return i
		}
	}
	return -1
}

// setView keeps the hover while its node is still displayed.
func (m *model) setView(v engine.View) {
	m.view = v
	if m.hovered == "" {
		return
	}
	if _, ok := findNode(v, m.hovered); !ok {
		m.hovered = ""
	}
}

func (m model) canvasSize() (int, int) {
	w := m.width - panelWidth - 4
	h := m.height - 7
	if w < minCanvas {
		w = minCanvas
	}
	if h < minCanvas/2 {
		h = minCanvas / 2
	}
	return w, h
}

func (m model) View() string {
	w, h := m.canvasSize()
	canvas := canvasStyle.Render(rasterize(m.view, w, h).String())
	panel := renderPanel(m.view, m.spinner.View())

	s := titleStyle.Render("fraud network") + "\n"
	s += lipgloss.JoinHorizontal(lipgloss.Top, canvas, panel) + "\n"
	s += statusLine(m.view)
	if m.message != "" {
		s += "  " + m.message
	}
	s += "\n" + m.help.View(m.keys)
	return s
}
