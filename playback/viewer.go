package playback

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const (
	canvasWidth  = 72
	canvasHeight = 22
)

// Viewer is a terminal player for a recorded history. Bodies are drawn as
// markers in an orthographic XY projection centered on the origin.
//
//	space      pause/resume
//	left/right single-step backward/forward
//	up/down    change playback speed
//	q          quit
type Viewer struct {
	history *History

	frame   int
	paused  bool
	speed   float64
	scale   float64
	canvas  [][]rune
	width   int
	height  int
	started time.Time
}

// NewViewer creates a viewer over a non-empty history.
func NewViewer(history *History) *Viewer {
	canvas := make([][]rune, canvasHeight)
	for i := range canvas {
		canvas[i] = make([]rune, canvasWidth)
	}
	return &Viewer{
		history: history,
		speed:   1.0,
		scale:   3.0,
		canvas:  canvas,
		width:   80,
		height:  24,
	}
}

// Run blocks until the viewer exits.
func (v *Viewer) Run() error {
	v.started = time.Now()
	_, err := tea.NewProgram(v, tea.WithAltScreen()).Run()
	return err
}

type frameTickMsg time.Time

func (v *Viewer) tick() tea.Cmd {
	interval := time.Duration(float64(time.Second) * v.history.Timestep / v.speed)
	if interval < 8*time.Millisecond {
		interval = 8 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

func (v *Viewer) Init() tea.Cmd {
	return v.tick()
}

func (v *Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return v, tea.Quit
		case " ":
			v.paused = !v.paused
		case "left":
			v.paused = true
			v.frame = max(0, v.frame-1)
		case "right":
			v.paused = true
			v.frame = min(len(v.history.Frames)-1, v.frame+1)
		case "up":
			v.speed = min(v.speed*2, 16)
		case "down":
			v.speed = max(v.speed/2, 0.125)
		case "+":
			v.scale *= 1.25
		case "-":
			v.scale /= 1.25
		case "r":
			v.frame = 0
		}
		return v, nil
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil
	case frameTickMsg:
		if !v.paused && v.frame < len(v.history.Frames)-1 {
			v.frame++
		}
		return v, v.tick()
	}
	return v, nil
}

func (v *Viewer) View() string {
	if len(v.history.Frames) == 0 {
		return dim.Render("empty history")
	}

	v.clearCanvas()
	frame := v.history.Frames[v.frame]
	for i, body := range frame.Bodies {
		x := canvasWidth/2 + int(body.Position[0]*v.scale)
		// Terminal cells are roughly twice as tall as wide.
		y := canvasHeight/2 - int(body.Position[1]*v.scale/2)
		v.set(x, y, markerFor(i))
	}

	var b strings.Builder
	b.WriteString(cyan.Render("sokudo playback"))
	b.WriteString("\n")

	border := dim.Render("+" + strings.Repeat("-", canvasWidth) + "+")
	b.WriteString(border)
	b.WriteString("\n")
	for _, row := range v.canvas {
		b.WriteString(dim.Render("|"))
		b.WriteString(white.Render(string(row)))
		b.WriteString(dim.Render("|"))
		b.WriteString("\n")
	}
	b.WriteString(border)
	b.WriteString("\n")

	status := fmt.Sprintf("frame %d/%d  t=%.3fs  speed %gx",
		v.frame+1, len(v.history.Frames), frame.Time, v.speed)
	if v.paused {
		status += "  " + yellow.Render("paused")
	}
	b.WriteString(white.Render(status))
	b.WriteString("\n")
	b.WriteString(dim.Render("space pause · arrows step/speed · +/- zoom · r rewind · q quit"))

	return b.String()
}

func (v *Viewer) clearCanvas() {
	for y := range v.canvas {
		for x := range v.canvas[y] {
			v.canvas[y][x] = ' '
		}
	}
}

func (v *Viewer) set(x, y int, c rune) {
	if x >= 0 && x < canvasWidth && y >= 0 && y < canvasHeight {
		v.canvas[y][x] = c
	}
}

var markers = []rune("o*#@%&+x")

func markerFor(bodyIdx int) rune {
	return markers[bodyIdx%len(markers)]
}
