package viz

import "github.com/charmbracelet/lipgloss"

// Theme is a color scheme for the live view.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeNight = Theme{
		Name:    "night",
		Primary: lipgloss.Color("#00ffff"),
		Accent:  lipgloss.Color("#ff00ff"),
		Text:    lipgloss.Color("#e0e0e0"),
		Muted:   lipgloss.Color("#666688"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff4444"),
	}

	ThemePhosphor = Theme{
		Name:    "phosphor",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00dd00"),
		Muted:   lipgloss.Color("#005500"),
		Success: lipgloss.Color("#88ff88"),
		Warning: lipgloss.Color("#ffff00"),
		Error:   lipgloss.Color("#ff0000"),
	}

	ThemeMono = Theme{
		Name:    "mono",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#dddddd"),
		Muted:   lipgloss.Color("#888888"),
		Success: lipgloss.Color("#ffffff"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff0000"),
	}

	Themes = []Theme{ThemeNight, ThemePhosphor, ThemeMono}
)

// GetTheme returns the named theme, or the first one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

// NextTheme returns the theme following t in Themes.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

type styles struct {
	header, label, value, muted, graph lipgloss.Style
	ok, warn, bad                      lipgloss.Style
	panel                              lipgloss.Style
}

func (t Theme) styles() styles {
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1),
		label:  lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:  lipgloss.NewStyle().Foreground(t.Text),
		muted:  lipgloss.NewStyle().Foreground(t.Muted),
		graph:  lipgloss.NewStyle().Foreground(t.Accent),
		ok:     lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		warn:   lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		bad:    lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(46),
	}
}
