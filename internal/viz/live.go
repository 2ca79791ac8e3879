package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/qpctl/internal/dynamo"
)

const (
	canvasWidth     = 60
	canvasHeight    = 22
	historyCapacity = 600
)

// Frame is one tick of a running loop.
type Frame struct {
	Time    float64
	State   dynamo.State
	Control dynamo.Control
}

// FrameObserver forwards ticks to ch without blocking the loop; frames
// are dropped while the display lags behind.
func FrameObserver(ch chan<- Frame) dynamo.Observer {
	return dynamo.ObserverFunc(func(x dynamo.State, u dynamo.Control, t float64) {
		select {
		case ch <- Frame{Time: t, State: x.Clone(), Control: u.Clone()}:
		default:
		}
	})
}

type frameMsg Frame

// DoneMsg ends the run shown by Live. Err is the error returned by the
// loop, if any.
type DoneMsg struct {
	Err     error
	Summary string
}

type refreshMsg time.Time

// Live follows a running loop. Frames are read from a channel; send a
// DoneMsg through the program once the loop returns.
type Live struct {
	scene  Scene
	frames <-chan Frame
	title  string
	theme  Theme

	canvas  *Canvas
	last    Frame
	effort  []float64
	count   int
	frozen  bool
	done    *DoneMsg
	help    bool
	started time.Time
}

func NewLive(title string, scene Scene, frames <-chan Frame) Live {
	return Live{
		scene:   scene,
		frames:  frames,
		title:   title,
		theme:   Themes[0],
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		effort:  make([]float64, 0, historyCapacity),
		started: time.Now(),
	}
}

// WithTheme returns a copy of l using the named theme.
func (l Live) WithTheme(name string) Live {
	l.theme = GetTheme(name)
	return l
}

func waitFrame(ch <-chan Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return frameMsg(f)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (l Live) Init() tea.Cmd {
	return tea.Batch(waitFrame(l.frames), refresh())
}

func (l Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return l, tea.Quit
		case " ":
			l.frozen = !l.frozen
		case "t":
			l.theme = NextTheme(l.theme)
		case "?":
			l.help = !l.help
		}
	case frameMsg:
		l.count++
		if !l.frozen {
			l.last = Frame(msg)
			l.effort = append(l.effort, l.last.Control.MaxAbs())
			if len(l.effort) > historyCapacity {
				l.effort = l.effort[1:]
			}
		}
		return l, waitFrame(l.frames)
	case DoneMsg:
		l.done = &msg
	case refreshMsg:
		return l, refresh()
	}
	return l, nil
}

func (l Live) View() string {
	st := l.theme.styles()

	l.canvas.Clear()
	if l.last.State != nil {
		l.scene.Draw(l.canvas, l.last.State)
	}
	canvasView := lipgloss.NewStyle().Padding(1, 2).Foreground(l.theme.Primary).Render(l.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(l.title)) + "\n")
	switch {
	case l.done != nil && l.done.Err != nil:
		s.WriteString(st.bad.Render("FAILED") + "\n")
	case l.done != nil:
		s.WriteString(st.ok.Render("DONE") + "\n")
	case l.frozen:
		s.WriteString(st.warn.Render("FROZEN") + "\n")
	default:
		s.WriteString(st.ok.Render("RUNNING") + "\n")
	}
	s.WriteString("\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("scene", l.scene.Name())
	row("time", fmt.Sprintf("%.2fs", l.last.Time))
	row("frames", fmt.Sprint(l.count))
	row("wall", time.Since(l.started).Truncate(time.Second).String())
	row("state", formatVec(l.last.State))
	row("control", formatVec(l.last.Control))

	if len(l.effort) > 1 {
		chart := asciigraph.Plot(l.effort, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption("max |u|"))
		s.WriteString("\n" + st.graph.Render(chart) + "\n")
	}
	if l.done != nil {
		if l.done.Err != nil {
			s.WriteString("\n" + st.bad.Render(l.done.Err.Error()) + "\n")
		}
		if l.done.Summary != "" {
			s.WriteString("\n" + l.done.Summary + "\n")
		}
	}
	s.WriteString(st.muted.Render("\nSP:Freeze T:Theme ?:Help Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
	if l.help {
		return st.muted.Render(helpText) + "\n" + view
	}
	return view
}

const helpText = `Space  freeze or resume the display (the run keeps going)
T      cycle themes
?      toggle this help
Q      quit`

func formatVec(v []float64) string {
	if len(v) == 0 {
		return "-"
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%+.3f", x)
	}
	return strings.Join(parts, " ")
}
