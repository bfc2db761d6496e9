package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// colorEnabled decides whether styled output goes to stdout.
func colorEnabled() bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// styled applies a style only when color output is on.
func styled(s lipgloss.Style, text string) string {
	if !colorEnabled() {
		return text
	}
	return s.Render(text)
}

// terminalWidth returns the usable output width, with a sane floor.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w < 40 {
		return 80
	}
	return w
}

// wrapDetail wraps long detail text to the terminal, indented under its row.
func wrapDetail(text string, indent int) string {
	width := terminalWidth() - indent
	if width < 20 {
		width = 20
	}
	wrapped := wordwrap.String(text, width)
	pad := strings.Repeat(" ", indent)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}

// table is a simple aligned text table, display-width aware.
type table struct {
	headers []string
	rows    [][]string
	widths  []int
}

func newTable(headers ...string) *table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &table{headers: headers, widths: widths}
}

func (t *table) addRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) && runewidth.StringWidth(c) > t.widths[i] {
			t.widths[i] = runewidth.StringWidth(c)
		}
	}
	t.rows = append(t.rows, cols)
}

func (t *table) render() {
	line := func(cols []string, style *lipgloss.Style) {
		parts := make([]string, len(t.headers))
		for i := range t.headers {
			cell := ""
			if i < len(cols) {
				cell = cols[i]
			}
			parts[i] = runewidth.FillRight(cell, t.widths[i])
		}
		out := "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
		if style != nil {
			out = styled(*style, out)
		}
		fmt.Println(out)
	}
	line(t.headers, &headerStyle)
	seps := make([]string, len(t.widths))
	for i, w := range t.widths {
		seps[i] = strings.Repeat("-", w)
	}
	line(seps, nil)
	for _, row := range t.rows {
		line(row, nil)
	}
}

// truncate shortens s to max display cells with an ellipsis.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "…")
}

// ageString formats how long ago t was, coarsely.
func ageString(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
