package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/CaseTrack/internal/models"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")
)

var (
	styleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	styleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	styleRed    = lipgloss.NewStyle().Foreground(colorRed)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	styleBold   = lipgloss.NewStyle().Bold(true)
)

// Formatter renders command output. A plain Formatter emits no escape sequences.
type Formatter struct {
	Plain bool
}

func (f Formatter) render(s lipgloss.Style, text string) string {
	if f.Plain {
		return text
	}
	return s.Render(text)
}

// Header renders an upper-cased section title with an underline.
func (f Formatter) Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s\n", f.render(styleHeader, upper), f.render(styleDim, line))
}

// Confidence renders a confidence level colored by how reliable it is.
func (f Formatter) Confidence(level models.ConfidenceLevel) string {
	switch level {
	case models.ConfidenceHigh:
		return f.render(styleGreen, string(level))
	case models.ConfidenceMedium:
		return f.render(styleYellow, string(level))
	default:
		return f.render(styleRed, string(level))
	}
}

// Table renders rows aligned under headers. Widths are measured on visible text.
func (f Formatter) Table(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	const colGap = 2
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := widths[i] - lipgloss.Width(cell)
			if style != nil {
				cell = f.render(*style, cell)
			}
			b.WriteString(cell)
			if i < len(headers)-1 {
				b.WriteString(strings.Repeat(" ", pad+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, &styleHeader)
	for i, w := range widths {
		b.WriteString(f.render(styleDim, strings.Repeat("─", w)))
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}

// Field renders a "label: value" line with a bold label.
func (f Formatter) Field(label, value string) string {
	return fmt.Sprintf("%s %s\n", f.render(styleBold, label+":"), value)
}

// Dim renders muted text.
func (f Formatter) Dim(text string) string {
	return f.render(styleDim, text)
}
