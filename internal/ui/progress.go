// Package ui renders compile progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sus/internal/compiler"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Files are only tracked individually while parsing; every later phase
// works on the linked design as a whole and gets one row in the pipeline.
type progressModel struct {
	title   string
	events  <-chan compiler.Event
	final   compiler.Phase
	spinner spinner.Model
	bar     progress.Model
	width   int

	files  []fileRow
	byPath map[string]int
	phases []phaseRow
	failed bool
	done   bool
}

type fileRow struct {
	path   string
	status compiler.Status
}

type phaseRow struct {
	phase   compiler.Phase
	status  compiler.Status
	elapsed time.Duration
}

type eventMsg compiler.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model fed by events. The pipeline
// shows every phase up to and including final.
func NewProgressModel(title string, files []string, final compiler.Phase, events <-chan compiler.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = activeStyle

	m := &progressModel{
		title:   title,
		events:  events,
		final:   final,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		width:   80,
		byPath:  make(map[string]int, len(files)),
	}
	m.bar.Width = m.width - 4
	for i, f := range files {
		m.files = append(m.files, fileRow{path: f, status: compiler.StatusQueued})
		m.byPath[f] = i
	}
	for p := compiler.PhaseInitialize; p <= final; p++ {
		m.phases = append(m.phases, phaseRow{phase: p, status: compiler.StatusQueued})
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(compiler.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 8 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

// apply records ev and returns the command animating the bar.
func (m *progressModel) apply(ev compiler.Event) tea.Cmd {
	if ev.Status == compiler.StatusError {
		m.failed = true
	}
	if ev.Phase == 0 {
		if i, ok := m.byPath[ev.File]; ok {
			m.files[i].status = ev.Status
		}
		return m.bar.SetPercent(m.fraction())
	}
	// Per-file copies of phase events carry nothing new.
	if ev.File != "" {
		return nil
	}
	if i := int(ev.Phase) - 1; i >= 0 && i < len(m.phases) {
		m.phases[i].status = ev.Status
		m.phases[i].elapsed = ev.Elapsed
	}
	return m.bar.SetPercent(m.fraction())
}

// fraction weighs parsing as one step next to each phase.
func (m *progressModel) fraction() float64 {
	steps := float64(len(m.phases) + 1)
	var parsed float64
	for _, f := range m.files {
		if f.status == compiler.StatusDone || f.status == compiler.StatusError {
			parsed++
		}
	}
	done := 1.0
	if len(m.files) > 0 {
		done = parsed / float64(len(m.files))
	}
	for _, p := range m.phases {
		if p.status == compiler.StatusDone || p.status == compiler.StatusError {
			done++
		}
	}
	return done / steps
}

func (m *progressModel) View() string {
	var b strings.Builder
	switch {
	case m.done && m.failed:
		b.WriteString(errorStyle.Render("failed: " + m.title))
	case m.done:
		b.WriteString(doneStyle.Render("done: " + m.title))
	default:
		b.WriteString(m.spinner.View() + " " + titleStyle.Render(m.title))
	}
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	for _, f := range m.files {
		fmt.Fprintf(&b, "  %s %s\n", styleFor(f.status).Render(fmt.Sprintf("%-8s", parseLabel(f.status))), truncate(f.path, nameWidth))
	}
	b.WriteString("\n  ")
	for i, p := range m.phases {
		if i > 0 {
			b.WriteString(pendingStyle.Render(" > "))
		}
		label := p.phase.String()
		if p.status == compiler.StatusDone {
			label += fmt.Sprintf(" %s", p.elapsed.Round(time.Millisecond))
		}
		b.WriteString(styleFor(p.status).Render(label))
	}
	b.WriteString("\n\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func parseLabel(s compiler.Status) string {
	if s == compiler.StatusWorking {
		return "parsing"
	}
	if s == compiler.StatusDone {
		return "parsed"
	}
	return string(s)
}

func styleFor(s compiler.Status) lipgloss.Style {
	switch s {
	case compiler.StatusDone:
		return doneStyle
	case compiler.StatusError:
		return errorStyle
	case compiler.StatusWorking:
		return activeStyle
	default:
		return pendingStyle
	}
}

// truncate shortens value to width display cells, keeping its end: the
// file name matters more than the directories leading to it.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.TruncateLeft(value, runewidth.StringWidth(value)-width, "")
	}
	return runewidth.TruncateLeft(value, runewidth.StringWidth(value)-width+3, "...")
}
