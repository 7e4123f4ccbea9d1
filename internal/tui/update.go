package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/offloadhq/offload-client/internal/deletion"
	"github.com/offloadhq/offload-client/internal/drag"
	"github.com/offloadhq/offload-client/internal/queue"
	"github.com/offloadhq/offload-client/internal/record"
)

type enqueueDoneMsg struct {
	name     string
	admitted bool
	err      error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()

		return m, nil

	case changedMsg:
		m.clampCursors()

		return m, listenForChanges(m.orch.Changes())

	case loginDoneMsg:
		if msg.err != nil {
			m.loginErr = msg.err.Error()

			return m, nil
		}

		m.state = browserState
		m.loginErr = ""

		return m, m.refreshCmd()

	case catalogDoneMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
		}

		return m, nil

	case enqueueDoneMsg:
		switch {
		case msg.err != nil:
			m.status = errorStyle.Render(fmt.Sprintf("%s: start rejected", msg.name))
		case msg.admitted:
			m.status = fmt.Sprintf("downloading %s", msg.name)
		default:
			m.status = fmt.Sprintf("queued %s", msg.name)
		}

		return m, nil

	case tea.MouseMsg:
		if m.state == browserState {
			return m.updateMouse(msg)
		}

		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case loginState:
			return m.updateLogin(msg)
		case confirmState:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowser(msg)
		}
	}

	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Login.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Login.Next):
		m.inputs[m.focusedInput].Blur()
		m.focusedInput = (m.focusedInput + 1) % len(m.inputs)
		m.inputs[m.focusedInput].Focus()

		return m, nil

	case key.Matches(msg, Keys.Login.Submit):
		if m.focusedInput < fieldPassword {
			m.inputs[m.focusedInput].Blur()
			m.focusedInput++
			m.inputs[m.focusedInput].Focus()

			return m, nil
		}

		return m, m.loginCmd()
	}

	var cmd tea.Cmd
	m.inputs[m.focusedInput], cmd = m.inputs[m.focusedInput].Update(msg)

	return m, cmd
}

func (m Model) loginCmd() tea.Cmd {
	server := m.inputs[fieldServer].Value()
	username := m.inputs[fieldUsername].Value()
	password := m.inputs[fieldPassword].Value()

	return func() tea.Msg {
		return loginDoneMsg{err: m.orch.Login(m.ctx, server, username, password)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return catalogDoneMsg{err: m.orch.RefreshCatalog(m.ctx)}
	}
}

func (m Model) enqueueCmd(req queue.Request) tea.Cmd {
	return func() tea.Msg {
		admitted, err := m.orch.Enqueue(m.ctx, req)

		return enqueueDoneMsg{name: req.Name, admitted: admitted, err: err}
	}
}

func (m Model) updateBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := Keys.Browser

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Cancel):
		m.session.Cancel()

		return m, nil

	case key.Matches(msg, keys.SwitchPane):
		m.focusDownloads = !m.focusDownloads

		return m, nil

	case key.Matches(msg, keys.Up):
		if m.focusDownloads {
			m.dlCursor = max(0, m.dlCursor-1)
		} else {
			m.cursor = max(0, m.cursor-1)
		}

		return m, nil

	case key.Matches(msg, keys.Down):
		if m.focusDownloads {
			if m.dlCursor < len(m.orch.Records())-1 {
				m.dlCursor++
			}
		} else if m.cursor < len(m.rows())-1 {
			m.cursor++
		}

		return m, nil

	case key.Matches(msg, keys.Enter):
		if m.focusDownloads {
			return m, nil
		}

		return m.activateRow()

	case key.Matches(msg, keys.Back):
		if !m.focusDownloads && len(m.folderStack) > 0 {
			m.folderStack = m.folderStack[:len(m.folderStack)-1]
			m.cursor = 0
		}

		return m, nil

	case key.Matches(msg, keys.Select):
		if rec, ok := m.recordUnderCursor(); ok {
			if _, selected := m.selected[rec.ID]; selected {
				delete(m.selected, rec.ID)
			} else {
				m.selected[rec.ID] = struct{}{}
			}
		}

		return m, nil

	case key.Matches(msg, keys.Pause):
		if rec, ok := m.recordUnderCursor(); ok {
			m.orch.Pause(m.ctx, rec.ID)
		}

		return m, nil

	case key.Matches(msg, keys.Open):
		if rec, ok := m.recordUnderCursor(); ok {
			m.orch.OpenPath(m.ctx, rec.ID)
		}

		return m, nil

	case key.Matches(msg, keys.Delete):
		return m.requestDelete()

	case key.Matches(msg, keys.Refresh):
		m.status = "refreshing catalog"

		return m, m.refreshCmd()

	case key.Matches(msg, keys.MoreSlots):
		applied := m.orch.SetMaxConcurrent(m.ctx, m.orch.MaxConcurrent()+1)
		m.status = fmt.Sprintf("concurrency cap: %d", applied)

		return m, nil

	case key.Matches(msg, keys.LessSlots):
		applied := m.orch.SetMaxConcurrent(m.ctx, m.orch.MaxConcurrent()-1)
		m.status = fmt.Sprintf("concurrency cap: %d", applied)

		return m, nil
	}

	return m, nil
}

// activateRow descends into a folder or starts the download under the cursor.
// Both gesture paths build a payload and converge on drag.Resolve.
func (m Model) activateRow() (tea.Model, tea.Cmd) {
	rows := m.rows()
	if m.cursor >= len(rows) {
		return m, nil
	}

	row := rows[m.cursor]

	if row.folder != nil {
		m.folderStack = append(m.folderStack, row.folder.ID)
		m.cursor = 0

		return m, nil
	}

	req, err := drag.Resolve(m.payloadFor(row), m.orch.CatalogSnapshot())
	if err != nil {
		m.status = errorStyle.Render(err.Error())

		return m, nil
	}

	return m, m.enqueueCmd(req)
}

func (m Model) payloadFor(row catalogRow) drag.Payload {
	if row.folder != nil {
		return drag.FolderPayload(row.folder.ID, row.folder.Name)
	}

	return drag.ItemPayload(row.archive.ID, row.subIndex)
}

func (m Model) recordUnderCursor() (record.DownloadRecord, bool) {
	records := m.orch.Records()
	if m.dlCursor >= len(records) {
		return record.DownloadRecord{}, false
	}

	return records[m.dlCursor], true
}

// selection returns the ids a delete acts on: the checked set, or the record
// under the cursor when nothing is checked.
func (m Model) selection() []string {
	if len(m.selected) > 0 {
		ids := make([]string, 0, len(m.selected))
		for id := range m.selected {
			ids = append(ids, id)
		}

		return ids
	}

	if rec, ok := m.recordUnderCursor(); ok {
		return []string{rec.ID}
	}

	return nil
}

func (m Model) requestDelete() (tea.Model, tea.Cmd) {
	ids := m.selection()
	if len(ids) == 0 {
		return m, nil
	}

	targets, needsConfirm := m.orch.RequestDelete(m.ctx, ids)
	if len(targets) == 0 {
		return m, nil
	}

	if !needsConfirm {
		m.selected = make(map[string]struct{})
		m.status = fmt.Sprintf("removed %d download(s)", len(targets))

		return m, nil
	}

	m.pendingTargets = targets
	m.remember = false
	m.state = confirmState

	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := Keys.Confirm

	switch {
	case key.Matches(msg, keys.Remember):
		m.remember = !m.remember

		return m, nil

	case key.Matches(msg, keys.DeleteFiles):
		return m.applyDeletion(deletion.ChoiceDelete)

	case key.Matches(msg, keys.RemoveOnly):
		return m.applyDeletion(deletion.ChoiceRemove)

	case key.Matches(msg, keys.Cancel):
		m.pendingTargets = nil
		m.state = browserState

		return m, nil
	}

	return m, nil
}

func (m Model) applyDeletion(choice deletion.Choice) (tea.Model, tea.Cmd) {
	m.orch.ApplyDeletion(m.ctx, m.pendingTargets, choice, m.remember)

	m.status = fmt.Sprintf("removed %d download(s)", len(m.pendingTargets))
	m.pendingTargets = nil
	m.selected = make(map[string]struct{})
	m.state = browserState
	m.clampCursors()

	return m, nil
}

// updateMouse drives the manual drag path: press captures a payload, motion
// tracks the hover affordance, release resolves the drop against the catalog
// snapshot current at that moment.
func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	pt := drag.Point{X: msg.X, Y: msg.Y}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !m.catalogPane.Contains(pt) {
			return m, nil
		}

		rows := m.rows()

		idx := m.rowAt(pt)
		if idx < 0 || idx >= len(rows) {
			return m, nil
		}

		m.cursor = idx
		m.session.Begin(m.payloadFor(rows[idx]), m.downloadsPane)

		return m, nil

	case tea.MouseActionMotion:
		m.session.Move(pt)

		return m, nil

	case tea.MouseActionRelease:
		req, ok := m.session.Drop(pt, m.orch.CatalogSnapshot())
		if !ok {
			return m, nil
		}

		return m, m.enqueueCmd(req)
	}

	return m, nil
}

// rowAt maps a pointer position to a catalog row index, accounting for the
// pane border and title line.
func (m Model) rowAt(pt drag.Point) int {
	return pt.Y - m.catalogPane.Y - 2
}
