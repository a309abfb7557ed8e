package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/perch/internal/logtail"
)

// updateLogViewport sizes the log viewport and refreshes its content,
// staying pinned to the bottom when it already was.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	atBottom := m.logViewport.AtBottom() || m.logViewport.TotalLineCount() == 0

	// Box inner = content height (m.height-3) minus the two borders.
	m.logViewport.Width = max(m.width-4, 10)
	m.logViewport.Height = max(m.height-5, 1)
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(m.renderLogContent())

	if atBottom {
		m.logViewport.GotoBottom()
	}
}

// renderLogs renders the client log view.
func (m Model) renderLogs(width, height int) string {
	title := "Client Log"
	if m.logPath != "" {
		title += " " + truncateMiddle(m.logPath, max(width/2, 10))
	}
	return m.renderBox(title, m.logViewport.View(), width, height)
}

// renderLogContent colorizes the tail of the log file.
func (m *Model) renderLogContent() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()

	if m.logErr != nil {
		return bg.Render("Could not read log: "+m.logErr.Error(), styles.DangerText)
	}
	if len(m.logLines) == 0 {
		return bg.Render("No log entries yet.", styles.MutedText)
	}

	out := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		out = append(out, m.colorizeLogLine(line, styles, bg))
	}
	return strings.Join(out, "\n")
}

// colorizeLogLine renders a JSON record as "time LEVEL message key=value";
// anything else is shown as is.
func (m *Model) colorizeLogLine(line string, styles Styles, bg BgStyle) string {
	entry, ok := logtail.ParseEntry(line)
	if !ok {
		return bg.Render(line, styles.Text)
	}

	var b strings.Builder
	if !entry.Time.IsZero() {
		b.WriteString(bg.Render(entry.Time.Local().Format("15:04:05"), styles.FaintText))
		b.WriteString(bg.Space())
	}
	level := strings.ToUpper(entry.Level)
	b.WriteString(bg.Render(fmt.Sprintf("%-5s", level), levelStyle(level, styles).Bold(true)))
	b.WriteString(bg.Space())
	b.WriteString(bg.Render(entry.Message, styles.Text))
	for _, a := range entry.Attrs {
		b.WriteString(bg.Space())
		b.WriteString(bg.Render(a.Key+"=", styles.MutedText))
		b.WriteString(bg.Render(a.Value, styles.AccentText))
	}
	return b.String()
}

// levelStyle returns the style for a log level.
func levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "INFO":
		return styles.SuccessText
	case "WARN":
		return styles.WarningText
	case "ERROR":
		return styles.DangerText
	case "DEBUG":
		return styles.InfoText
	default:
		return styles.Text
	}
}
