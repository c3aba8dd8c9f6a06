package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Primary = lipgloss.Color("#7D56F4")
	Success = lipgloss.Color("#00E680")
	Warning = lipgloss.Color("#FFB800")
	Danger  = lipgloss.Color("#FF4D4D")
	Muted   = lipgloss.Color("#6B7280")

	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Danger)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	LabelStyle = lipgloss.NewStyle().Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)
)

// Successf writes a success line.
func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warnf writes a warning line.
func Warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, WarningStyle.Render("! "+fmt.Sprintf(format, args...)))
}

// Errorf writes an error line.
func Errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

// Field is one labelled line of a Box.
type Field struct {
	Label string
	Value string
}

// Box renders a titled, bordered block of aligned label/value lines.
func Box(title string, fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = MutedStyle.Render("-")
		}
		label := LabelStyle.Render(f.Label + ":" + strings.Repeat(" ", width-len(f.Label)))
		lines = append(lines, label+" "+value)
	}

	body := strings.Join(lines, "\n")
	if title != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), body)
	}
	return BoxStyle.Render(body)
}
