package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/harvester/internal/tui/styles"
)

// View renders the progress screen
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("harvester"))
	b.WriteString("  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.Fraction()))
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  %d / %d items", min(m.Offset, m.Total), m.Total)))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats())
	b.WriteString("\n")

	if len(m.Recent) > 0 {
		b.WriteString(m.renderRecent())
		b.WriteString("\n")
	}

	if !m.Done {
		b.WriteString(styles.HelpKeyStyle.Render(m.keys.Quit.Help().Key))
		b.WriteString(" ")
		b.WriteString(styles.HelpDescStyle.Render(m.keys.Quit.Help().Desc))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderStatus() string {
	switch {
	case m.Done && m.Err != nil:
		return styles.ErrorStyle.Render("Error: " + m.Err.Error())
	case m.Done:
		return styles.SuccessStyle.Render("✓ complete")
	case m.Stopping:
		return m.spinner.View() + " " + styles.WarnStyle.Render("stopping...")
	case m.LastPage != nil:
		return m.spinner.View() + " " + styles.SubtitleStyle.Render(
			fmt.Sprintf("item %s page %d", m.LastPage.ItemID, m.LastPage.Page))
	default:
		return m.spinner.View() + " " + styles.SubtitleStyle.Render("counting catalog...")
	}
}

func (m Model) renderStats() string {
	row := func(label string, value int, style lipgloss.Style) string {
		return styles.LabelStyle.Render(label) + style.Render(fmt.Sprintf("%d", value))
	}

	failStyle := func(n int) lipgloss.Style {
		if n > 0 {
			return styles.ErrorStyle
		}
		return styles.ValueStyle
	}

	warnStyle := styles.ValueStyle
	if m.Discrepancies > 0 {
		warnStyle = styles.WarnStyle
	}

	rows := []string{
		row("Batches", m.Batches, styles.ValueStyle),
		row("Items", m.Items, styles.ValueStyle),
		row("Pages", m.Pages, styles.ValueStyle),
		row("Records", m.Records, styles.SuccessStyle),
		row("Page errors", m.PageFailures, failStyle(m.PageFailures)),
		row("Write errors", m.WriteFailures, failStyle(m.WriteFailures)),
		row("Short items", m.Discrepancies, warnStyle),
	}
	return styles.PanelBorder.Render(strings.Join(rows, "\n"))
}

func (m Model) renderRecent() string {
	lines := []string{styles.SubtitleStyle.Render("Recent discrepancies")}
	for i := len(m.Recent) - 1; i >= 0; i-- {
		t := m.Recent[i]
		lines = append(lines, fmt.Sprintf("%s %s",
			styles.AccentStyle.Render(t.ItemID),
			styles.DimStyle.Render(fmt.Sprintf("expected %d, observed %d (%d pages, stop=%s)",
				t.Expected, t.Observed, t.Pages, t.Stop))))
	}
	return strings.Join(lines, "\n")
}
