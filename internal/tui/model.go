// Package tui is the interactive terminal browser for FileVault.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/filetype"
	"github.com/fjmerc/filevault/internal/store"
)

const (
	minWidth    = 60
	listVisible = 15
)

// EventMsg carries a store event into the program.
type EventMsg store.Event

type listingLoadedMsg struct{ err error }

type statsLoadedMsg struct{ err error }

type detailsLoadedMsg struct {
	id  string
	err error
}

type deleteDoneMsg struct {
	id   string
	name string
	err  error
}

// Model is the BubbleTea model for the file browser. All data lives in the
// store; the model keeps a copy of the state it renders.
type Model struct {
	store *store.Store
	ctx   context.Context

	search    textinput.Model
	searching bool
	typeIdx   int // 0 = all types, otherwise KnownTypes[typeIdx-1]
	sizeIdx   int // 0 = all sizes, otherwise SizeRanges[sizeIdx-1]

	cursor       int
	scrollOffset int

	listing    store.State[*filevault.FileListing]
	active     store.ListKey
	selectedID string
	details    store.State[*filevault.FileRecord]
	stats      store.State[*filevault.StorageStats]

	width   int
	height  int
	message string
	isError bool
}

// New creates a browser model over s. ctx bounds every request it makes.
func New(ctx context.Context, s *store.Store) Model {
	si := textinput.New()
	si.Placeholder = "Search files..."
	si.Prompt = "/ "
	si.CharLimit = 100
	si.Width = 40

	m := Model{
		store:  s,
		ctx:    ctx,
		search: si,
		width:  80,
		height: 30,
	}
	m.refresh()
	return m
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, s *store.Store) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))

	// Store calls made inside Update emit synchronously, so Send must not
	// block the emitting goroutine. Events only trigger a re-read of store
	// state; their order does not matter.
	unsubscribe := s.Subscribe(func(ev store.Event) {
		go p.Send(EventMsg(ev))
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("FileVault"),
		m.loadListing(),
		m.loadStats(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.height = msg.Height
		return m, nil

	case EventMsg:
		m.refresh()
		if msg.Kind == store.EventMutation && msg.State == store.MutationRolledBack {
			m.flash(fmt.Sprintf("Delete failed, file restored: %v", msg.Err), true)
		}
		return m, nil

	case listingLoadedMsg:
		m.refresh()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.flash(fmt.Sprintf("Failed to load files: %v", msg.err), true)
		}
		return m, nil

	case statsLoadedMsg:
		m.refresh()
		return m, nil

	case detailsLoadedMsg:
		m.refresh()
		if msg.err != nil && msg.id == m.selectedID && !errors.Is(msg.err, store.ErrSuperseded) {
			m.flash(fmt.Sprintf("Failed to load details: %v", msg.err), true)
		}
		return m, nil

	case deleteDoneMsg:
		m.refresh()
		if msg.err != nil {
			m.flash(fmt.Sprintf("Failed to delete %s: %v", msg.name, msg.err), true)
		} else {
			m.flash(fmt.Sprintf("Deleted %s", msg.name), false)
		}
		return m, m.loadStats()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "enter", "down":
		m.searching = false
		m.search.Blur()
		if msg.String() == "enter" {
			m.store.FlushView()
		}
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.store.SetSearchQuery(v)
		m.cursor, m.scrollOffset = 0, 0
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	files := m.files()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "/":
		m.searching = true
		return m, m.search.Focus()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(files)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(files)-1, 0)

	case "enter":
		if m.cursor < len(files) {
			m.store.Select(files[m.cursor].ID)
			m.refresh()
			return m, m.loadDetails()
		}
	case "esc":
		m.store.Select("")
		m.refresh()

	case "t":
		m.typeIdx = (m.typeIdx + 1) % (len(filetype.KnownTypes) + 1)
		m.applyFilters()
	case "s":
		m.sizeIdx = (m.sizeIdx + 1) % (len(store.SizeRanges) + 1)
		m.applyFilters()
	case "c":
		m.typeIdx, m.sizeIdx = 0, 0
		m.search.SetValue("")
		m.store.SetSearchQuery("")
		m.applyFilters()

	case "d":
		if m.cursor < len(files) {
			return m, m.deleteFile(files[m.cursor])
		}

	case "r":
		m.message = ""
		return m, tea.Batch(m.refetch(), m.loadStats())
	}

	m.clampCursor()
	return m, nil
}

// filters returns the criteria selected by the type and size cycles.
func (m Model) filters() store.FilterCriteria {
	var f store.FilterCriteria
	if m.typeIdx > 0 {
		f.FileType = filetype.KnownTypes[m.typeIdx-1].MIMEType
	}
	if m.sizeIdx > 0 {
		r := store.SizeRanges[m.sizeIdx-1]
		f.MinSizeMB, f.MaxSizeMB = r.MinMB, r.MaxMB
	}
	return f
}

func (m *Model) applyFilters() {
	if err := m.store.SetFilters(m.filters()); err != nil {
		m.flash(err.Error(), true)
		return
	}
	m.cursor, m.scrollOffset = 0, 0
}

// refresh copies the store state the view renders.
func (m *Model) refresh() {
	m.active = m.store.ActiveKey()
	m.listing = m.store.ListingState(m.active)
	m.selectedID, m.details = m.store.DetailsState()
	m.stats = m.store.StatsState()
	m.clampCursor()
}

func (m *Model) clampCursor() {
	n := len(m.files())
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+listVisible {
		m.scrollOffset = m.cursor - listVisible + 1
	}
}

func (m *Model) flash(msg string, isError bool) {
	m.message = msg
	m.isError = isError
}

func (m Model) files() []filevault.FileRecord {
	if m.listing.Data == nil {
		return nil
	}
	return m.listing.Data.Files
}

func (m Model) loadListing() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		_, err := s.ActiveListing(ctx)
		return listingLoadedMsg{err: err}
	}
}

func (m Model) refetch() tea.Cmd {
	s, ctx, key := m.store, m.ctx, m.active
	return func() tea.Msg {
		_, err := s.Refetch(ctx, key)
		return listingLoadedMsg{err: err}
	}
}

func (m Model) loadStats() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		_, err := s.StorageStats(ctx)
		return statsLoadedMsg{err: err}
	}
}

func (m Model) loadDetails() tea.Cmd {
	s, ctx, id := m.store, m.ctx, m.store.Selected()
	return func() tea.Msg {
		_, err := s.Details(ctx)
		return detailsLoadedMsg{id: id, err: err}
	}
}

func (m Model) deleteFile(rec filevault.FileRecord) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		err := s.Delete(ctx, rec.ID)
		return deleteDoneMsg{id: rec.ID, name: rec.OriginalFilename, err: err}
	}
}
