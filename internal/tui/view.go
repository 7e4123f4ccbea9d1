package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/offloadhq/offload-client/internal/record"
)

func (m Model) View() string {
	switch m.state {
	case loginState:
		return m.viewLogin()
	case confirmState:
		return m.viewConfirm()
	default:
		return m.viewBrowser()
	}
}

func (m Model) viewLogin() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("offload — sign in"))
	b.WriteString("\n\n")

	labels := []string{"Server", "Username", "Password"}
	for i, input := range m.inputs {
		b.WriteString(mutedStyle.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n")
	}

	if m.loginErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.loginErr))
	}

	b.WriteString(helpStyle.Render("\ntab: next field • enter: sign in • ctrl+c: quit"))

	return b.String()
}

func (m Model) viewBrowser() string {
	header := titleStyle.Render("offload") +
		mutedStyle.Render(fmt.Sprintf("  slots %d/%d", activeCount(m.orch.Records()), m.orch.MaxConcurrent()))

	catalog := m.renderCatalogPane()
	downloads := m.renderDownloadsPane()

	body := lipgloss.JoinHorizontal(lipgloss.Top, catalog, downloads)

	status := m.status
	if m.session.Dragging() {
		status = "dragging — release over the downloads panel to start"
		if m.session.Hover() {
			status = hoverPaneStyle.Render("drop to download")
		}
	}

	return header + "\n" + body + "\n" + status + helpStyle.Render("\n"+browserHelp)
}

const browserHelp = "enter: open/download • tab: switch pane • space: select • p: pause • d: delete • o: open • r: refresh • +/-: slots • q: quit"

func (m Model) renderCatalogPane() string {
	rows := m.rows()

	var b strings.Builder

	b.WriteString(titleStyle.Render("Catalog"))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("empty folder"))
	}

	for i, row := range rows {
		line := catalogLine(row)

		if i == m.cursor && !m.focusDownloads {
			line = cursorRowStyle.Render(line)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	style := paneStyle
	if !m.focusDownloads {
		style = activePaneStyle
	}

	return style.Width(max(20, m.catalogPane.Width-2)).Height(m.catalogPane.Height).Render(b.String())
}

func catalogLine(row catalogRow) string {
	switch {
	case row.folder != nil:
		return "▸ " + row.folder.Name + "/"
	case row.subIndex != nil:
		name := row.archive.DisplayName(row.subIndex)

		return "    · " + name
	default:
		size := ""
		if row.archive.Size > 0 {
			size = mutedStyle.Render("  " + humanize.IBytes(uint64(row.archive.Size)))
		}

		return "  " + row.archive.DisplayName(nil) + size
	}
}

func (m Model) renderDownloadsPane() string {
	records := m.orch.Records()
	pending := m.orch.Pending()

	var b strings.Builder

	b.WriteString(titleStyle.Render("Downloads"))
	b.WriteString("\n")

	if len(records) == 0 && len(pending) == 0 {
		b.WriteString(mutedStyle.Render("drag items here or press enter on one"))
	}

	for i, rec := range records {
		line := m.downloadLine(rec)

		if _, ok := m.selected[rec.ID]; ok {
			line = selectedRowStyle.Render("✓ " + line)
		} else {
			line = "  " + line
		}

		if i == m.dlCursor && m.focusDownloads {
			line = cursorRowStyle.Render(line)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(pending) > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("… %d waiting for a slot", len(pending))))
		b.WriteString("\n")
	}

	style := paneStyle
	if m.focusDownloads {
		style = activePaneStyle
	}

	if m.session.Hover() {
		style = hoverPaneStyle
	}

	return style.Width(max(20, m.downloadsPane.Width-2)).Height(m.downloadsPane.Height).Render(b.String())
}

func (m Model) downloadLine(rec record.DownloadRecord) string {
	statusStyle, ok := statusStyles[string(rec.Status)]
	if !ok {
		statusStyle = mutedStyle
	}

	detail := ""

	switch rec.Status {
	case record.StatusActive, record.StatusPaused:
		if rec.Total > 0 {
			detail = " " + m.bar.ViewAs(float64(rec.Downloaded)/float64(rec.Total))
		}

		if rec.Status == record.StatusActive && rec.Speed > 0 {
			detail += " " + mutedStyle.Render(humanize.IBytes(uint64(rec.Speed))+"/s")
		}
	case record.StatusCompleted:
		if rec.Total > 0 {
			detail = " " + mutedStyle.Render(humanize.IBytes(uint64(rec.Total)))
		}
	}

	return fmt.Sprintf("%s %s%s", statusStyle.Render(statusBadge(rec.Status)), rec.Name, detail)
}

func statusBadge(s record.Status) string {
	switch s {
	case record.StatusQueued:
		return "[queued]"
	case record.StatusActive:
		return "[active]"
	case record.StatusPaused:
		return "[paused]"
	case record.StatusError:
		return "[error] "
	case record.StatusCompleted:
		return "[done]  "
	default:
		return "[?]     "
	}
}

func (m Model) viewConfirm() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Delete %d download(s)?", len(m.pendingTargets))))
	b.WriteString("\n\n")

	for _, target := range m.pendingTargets {
		b.WriteString(mutedStyle.Render(target.Path))
		b.WriteString("\n")
	}

	remember := "[ ]"
	if m.remember {
		remember = "[x]"
	}

	b.WriteString(fmt.Sprintf("\n%s remember this choice (m)\n\n", remember))
	b.WriteString(helpStyle.Render("d: delete files • r: remove from list only • esc: cancel"))

	modal := modalStyle.Render(b.String())

	if m.width == 0 || m.height == 0 {
		return modal
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func activeCount(records []record.DownloadRecord) int {
	var n int

	for _, rec := range records {
		if rec.Status.CountsAgainstCap() {
			n++
		}
	}

	return n
}
