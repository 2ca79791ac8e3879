package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))
)

// Sparkline renders values as one row of block characters, resampled to
// width.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	n := min(width, len(values))
	var b strings.Builder
	for i := 0; i < n; i++ {
		v := values[i*len(values)/n]
		idx := int((v - lo) / rng * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return b.String()
}

// ProgressBar renders a fraction in [0, 1] as a bar of width cells.
func ProgressBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Separator is a horizontal rule of width cells.
func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return Subtle.Render(left + " ◆ " + right)
}
