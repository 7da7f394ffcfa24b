package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clockify-blocks/internal/widget"
)

// Renderer rebuilds the widgets of the active document; app.App satisfies it.
type Renderer interface {
	Render(ctx context.Context) ([]*widget.Widget, error)
	Insert(ctx context.Context, line int) error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4A90E2"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	selectedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Border(lipgloss.HiddenBorder()).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// refreshMsg carries a periodic view from one widget.
type refreshMsg struct {
	generation int
	index      int
	view       widget.View
}

// renderedMsg replaces every widget after a (re-)render.
type renderedMsg struct {
	widgets []*widget.Widget
	err     error
}

// clickedMsg reports the end of a click or description save.
type clickedMsg struct {
	generation int
	index      int
	view       widget.View
	err        error
}

// documentChangedMsg is sent when the document changed on disk.
type documentChangedMsg struct{}

// Model is the bubbletea model for one document's trackers.
type Model struct {
	ctx      context.Context
	renderer Renderer
	path     string
	interval time.Duration
	log      *slog.Logger

	widgets    []*widget.Widget
	views      []widget.View
	generation int
	refresh    chan refreshMsg

	cursor  int
	editing bool
	input   textinput.Model
	keys    keyMap
	help    help.Model
	status  string
	width   int
}

// NewModel builds the UI for the document at path.
func NewModel(ctx context.Context, r Renderer, path string, interval time.Duration, log *slog.Logger) Model {
	in := textinput.New()
	in.Placeholder = "Description"
	in.CharLimit = 512
	return Model{
		ctx:      ctx,
		renderer: r,
		path:     path,
		interval: interval,
		log:      log,
		refresh:  make(chan refreshMsg, 64),
		input:    in,
		keys:     defaultKeyMap(),
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.render(), m.waitForRefresh())
}

func (m Model) render() tea.Cmd {
	return func() tea.Msg {
		ws, err := m.renderer.Render(m.ctx)
		return renderedMsg{widgets: ws, err: err}
	}
}

// waitForRefresh turns the next widget refresh into a message.
func (m Model) waitForRefresh() tea.Cmd {
	ch := m.refresh
	return func() tea.Msg {
		return <-ch
	}
}

// attach starts every widget's refresh. The callback never blocks so Detach
// cannot deadlock against a full channel.
func (m *Model) attach() {
	gen, ch := m.generation, m.refresh
	for i, w := range m.widgets {
		w.Attach(m.ctx, m.interval, func(v widget.View) {
			select {
			case ch <- refreshMsg{generation: gen, index: i, view: v}:
			default:
			}
		})
	}
}

// Detach stops the refresh of every widget.
func (m *Model) Detach() {
	for _, w := range m.widgets {
		w.Detach()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case renderedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.Detach()
		m.generation++
		m.widgets = msg.widgets
		m.views = make([]widget.View, len(m.widgets))
		for i, w := range m.widgets {
			m.views[i] = w.View()
		}
		if m.cursor >= len(m.widgets) {
			m.cursor = max(len(m.widgets)-1, 0)
		}
		m.editing = false
		m.input.Blur()
		m.attach()
		return m, nil

	case refreshMsg:
		if msg.generation == m.generation && msg.index < len(m.views) {
			m.views[msg.index] = msg.view
		}
		return m, m.waitForRefresh()

	case clickedMsg:
		if msg.generation == m.generation && msg.index < len(m.views) {
			m.views[msg.index] = msg.view
		}
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = fmt.Sprintf("block %d: %s", msg.index, msg.view.State)
		}
		return m, nil

	case documentChangedMsg:
		return m, m.render()

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Detach()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.widgets)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Click):
		if w := m.selected(); w != nil {
			return m, m.click(w)
		}
	case key.Matches(msg, m.keys.Edit):
		w := m.selected()
		if w == nil {
			return m, nil
		}
		v := w.View()
		if !v.DescriptionEnabled {
			m.status = widget.ErrRunning.Error()
			return m, nil
		}
		m.editing = true
		m.input.SetValue(v.Description)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Insert):
		line := math.MaxInt
		if w := m.selected(); w != nil {
			line = w.Block().LineEnd + 1
		}
		r := m.renderer
		ctx := m.ctx
		return m, func() tea.Msg {
			if err := r.Insert(ctx, line); err != nil {
				return clickedMsg{generation: -1, err: err}
			}
			return documentChangedMsg{}
		}
	case key.Matches(msg, m.keys.Reload):
		return m, m.render()
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		m.editing = false
		m.input.Blur()
		w := m.selected()
		if w == nil {
			return m, nil
		}
		text := m.input.Value()
		gen, idx, ctx := m.generation, m.cursor, m.ctx
		return m, func() tea.Msg {
			v, err := w.Describe(ctx, text)
			return clickedMsg{generation: gen, index: idx, view: v, err: err}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) selected() *widget.Widget {
	if m.cursor < 0 || m.cursor >= len(m.widgets) {
		return nil
	}
	return m.widgets[m.cursor]
}

func (m Model) click(w *widget.Widget) tea.Cmd {
	gen, idx, ctx := m.generation, m.cursor, m.ctx
	return func() tea.Msg {
		v, err := w.Click(ctx)
		if errors.Is(err, widget.ErrBusy) {
			m.log.Debug("click ignored while saving", slog.Int("block", idx))
		}
		return clickedMsg{generation: gen, index: idx, view: v, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Clockify · " + m.path))
	b.WriteString("\n\n")

	if len(m.views) == 0 {
		b.WriteString(idleStyle.Render("No clockify-timer blocks. Press i to insert one."))
		b.WriteString("\n")
	}
	for i, v := range m.views {
		style := rowStyle
		if i == m.cursor {
			style = selectedStyle
		}
		desc := v.Description
		if i == m.cursor && m.editing {
			desc = m.input.View()
		} else if desc == "" {
			desc = idleStyle.Render("(no description)")
		}
		b.WriteString(style.Render(fmt.Sprintf("%s  %s  Duration %s  [%s]",
			stateBadge(v.State), desc, v.Duration, v.Affordance.Tooltip)))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.editing {
		b.WriteString(helpStyle.Render(m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Cancel})))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func stateBadge(state string) string {
	switch state {
	case "running":
		return runningStyle.Render("● running  ")
	case "completed":
		return completedStyle.Render("■ completed")
	default:
		return idleStyle.Render("○ idle     ")
	}
}
