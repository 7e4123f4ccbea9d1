package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/deletion"
	"github.com/offloadhq/offload-client/internal/drag"
	"github.com/offloadhq/offload-client/internal/orchestrator"
)

type uiState int

const (
	loginState uiState = iota
	browserState
	confirmState
)

const (
	fieldServer = iota
	fieldUsername
	fieldPassword
)

// headerHeight is the rows consumed above the panels: title plus a blank line.
const headerHeight = 2

// changedMsg is the coalesced repaint signal from the orchestrator.
type changedMsg struct{}

type loginDoneMsg struct{ err error }

type catalogDoneMsg struct{ err error }

// catalogRow is one visible line of the catalog panel: a child folder, an
// archive, or an expanded bundle member.
type catalogRow struct {
	folder   *catalog.Folder
	archive  *catalog.Archive
	subIndex *int
}

type Model struct {
	ctx  context.Context
	orch *orchestrator.Orchestrator

	state        uiState
	inputs       []textinput.Model
	focusedInput int
	loginErr     string

	// Catalog navigation. The stack holds the path from the root; the top is
	// the folder being browsed.
	folderStack []string
	cursor      int

	// Downloads panel.
	dlCursor       int
	focusDownloads bool
	selected       map[string]struct{}

	// Manual drag gesture between the two panels.
	session       drag.Session
	catalogPane   drag.Rect
	downloadsPane drag.Rect

	// Deletion confirmation modal.
	pendingTargets []deletion.Target
	remember       bool

	bar progress.Model

	width  int
	height int
	status string
}

func New(ctx context.Context, orch *orchestrator.Orchestrator, serverURL, username string) Model {
	server := textinput.New()
	server.Placeholder = "https://box.example.com"
	server.SetValue(serverURL)
	server.Focus()

	user := textinput.New()
	user.Placeholder = "username"
	user.SetValue(username)

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword

	return Model{
		ctx:      ctx,
		orch:     orch,
		state:    loginState,
		inputs:   []textinput.Model{server, user, pass},
		selected: make(map[string]struct{}),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(18), progress.WithoutPercentage()),
	}
}

// Authenticated skips the login form, for a session restored from persisted
// credentials.
func (m Model) Authenticated() Model {
	m.state = browserState

	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, listenForChanges(m.orch.Changes())}

	if m.state == browserState {
		cmds = append(cmds, m.refreshCmd())
	}

	return tea.Batch(cmds...)
}

func listenForChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch

		return changedMsg{}
	}
}

func (m Model) currentFolder() string {
	if len(m.folderStack) == 0 {
		return ""
	}

	return m.folderStack[len(m.folderStack)-1]
}

// rows builds the catalog panel lines for the folder being browsed. Bundles
// contribute one line per member under the archive line.
func (m Model) rows() []catalogRow {
	snap := m.orch.CatalogSnapshot()
	folderID := m.currentFolder()

	var out []catalogRow

	folders := snap.ChildFolders(folderID)
	for i := range folders {
		out = append(out, catalogRow{folder: &folders[i]})
	}

	archives := snap.ArchivesIn(folderID)
	for i := range archives {
		out = append(out, catalogRow{archive: &archives[i]})

		if archives[i].IsBundle {
			for j := range archives[i].Files {
				idx := j
				out = append(out, catalogRow{archive: &archives[i], subIndex: &idx})
			}
		}
	}

	return out
}

func (m *Model) clampCursors() {
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}

	if n := len(m.orch.Records()); m.dlCursor >= n {
		m.dlCursor = max(0, n-1)
	}
}

// recalcLayout recomputes the panel bounds after a resize. The downloads
// panel is the drop target for the manual drag path.
func (m *Model) recalcLayout() {
	leftWidth := m.width / 2
	bodyHeight := max(0, m.height-headerHeight-2)

	m.catalogPane = drag.Rect{X: 0, Y: headerHeight, Width: leftWidth, Height: bodyHeight}
	m.downloadsPane = drag.Rect{X: leftWidth, Y: headerHeight, Width: m.width - leftWidth, Height: bodyHeight}
}
