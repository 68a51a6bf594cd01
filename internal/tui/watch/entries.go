package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ledgerline/internal/journal"
)

// renderHeader shows the spinner, totals by status, and the title bar.
func (m Model) renderHeader() string {
	var counts []string
	for _, status := range []journal.Status{
		journal.StatusRecorded,
		journal.StatusSkipped,
		journal.StatusReplyFailed,
		journal.StatusForwarded,
		journal.StatusForwardFailed,
	} {
		if n, ok := m.counts[status]; ok && n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", status, n))
		}
	}
	summary := "no outcomes yet"
	if len(counts) > 0 {
		summary = strings.Join(counts, " • ")
	}

	title := m.theme.Title.Render("ledgerline watch")
	return m.theme.Border.Width(max(m.width-6, 20)).Render(
		title + " " + m.spinner.View() + " " + m.theme.Dim.Render(summary),
	)
}

// renderEntries shows the journal tail, newest first.
func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return m.theme.Dim.Render("  journal is empty")
	}

	var b strings.Builder
	b.WriteString(m.theme.Header.Render(
		fmt.Sprintf("  %-8s %-14s %-10s %-12s %8s  %s", "TIME", "STATUS", "DATE", "ITEM", "AMOUNT", "DETAIL")))
	b.WriteString("\n")

	rows := m.entries
	if limit := m.height - 8; limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	for _, e := range rows {
		style := m.statusStyle(e.Status)
		amount := ""
		if e.Amount != 0 {
			amount = fmt.Sprintf("%.0f", e.Amount)
		}
		line := fmt.Sprintf("  %-8s %s %-10s %-12s %8s  %s",
			e.CreatedAt.Local().Format("15:04:05"),
			style.Render(fmt.Sprintf("%-14s", string(e.Status))),
			e.Date,
			truncateCell(e.Item, 12),
			amount,
			m.theme.Dim.Render(truncateCell(e.Detail, 40)),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) statusStyle(status journal.Status) lipgloss.Style {
	switch status {
	case journal.StatusRecorded:
		return m.theme.StatusRecorded
	case journal.StatusForwarded:
		return m.theme.StatusForwarded
	case journal.StatusReplyFailed, journal.StatusForwardFailed:
		return m.theme.StatusFailed
	default:
		return m.theme.StatusSkipped
	}
}

func truncateCell(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
