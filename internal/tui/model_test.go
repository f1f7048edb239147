package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/store"
)

type fakeAPI struct {
	mu    sync.Mutex
	files []filevault.FileRecord
}

func (f *fakeAPI) snapshot(query string) *filevault.FileListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := []filevault.FileRecord{}
	for _, rec := range f.files {
		if query == "" || strings.Contains(rec.OriginalFilename, query) {
			files = append(files, rec)
		}
	}
	return &filevault.FileListing{Files: files, Total: len(files), Query: query}
}

func (f *fakeAPI) ListFiles(ctx context.Context, opts filevault.ListOptions) (*filevault.FileListing, error) {
	return f.snapshot(""), nil
}

func (f *fakeAPI) SearchFiles(ctx context.Context, query string, opts filevault.ListOptions) (*filevault.FileListing, error) {
	return f.snapshot(query), nil
}

func (f *fakeAPI) GetFileDetails(ctx context.Context, id string) (*filevault.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.files {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, &filevault.APIError{StatusCode: 404, Message: "Not found.", Err: filevault.ErrNotFound}
}

func (f *fakeAPI) DeleteFile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.files {
		if rec.ID == id {
			f.files = append(f.files[:i:i], f.files[i+1:]...)
			return nil
		}
	}
	return &filevault.APIError{StatusCode: 404, Message: "Not found.", Err: filevault.ErrNotFound}
}

func (f *fakeAPI) Upload(ctx context.Context, filename string, r io.Reader, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	return nil, errors.New("not supported")
}

func (f *fakeAPI) UploadFile(ctx context.Context, path string, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	return nil, errors.New("not supported")
}

func (f *fakeAPI) GetStorageStats(ctx context.Context) (*filevault.StorageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, rec := range f.files {
		total += rec.Size
	}
	stats := filevault.ComputeStorageStats(len(f.files), len(f.files), total, total)
	return &stats, nil
}

func newTestModel(t *testing.T, preload bool) (Model, *store.Store) {
	t.Helper()
	uploaded := time.Now().Add(-2 * time.Hour)
	api := &fakeAPI{files: []filevault.FileRecord{
		{ID: "a", OriginalFilename: "report.pdf", FileType: "application/pdf", Size: 1536, UploadedAt: uploaded, FileHash: "abc123", FileURL: "http://localhost:8000/media/report.pdf"},
		{ID: "b", OriginalFilename: "photo.png", FileType: "image/png", Size: 2048, UploadedAt: uploaded, FileHash: "def456", FileURL: "http://localhost:8000/media/photo.png"},
	}}

	opts := store.DefaultOptions()
	opts.DebounceDelay = 10 * time.Millisecond
	opts.RetryInterval = time.Millisecond
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(api, opts)
	t.Cleanup(s.Close)

	ctx := context.Background()
	if preload {
		if _, err := s.Listing(ctx, store.ListKey{}); err != nil {
			t.Fatal(err)
		}
		if _, err := s.StorageStats(ctx); err != nil {
			t.Fatal(err)
		}
	}
	return New(ctx, s), s
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestViewRendersListingAndStats(t *testing.T) {
	m, _ := newTestModel(t, true)
	view := m.View()

	for _, want := range []string{"report.pdf", "photo.png", "PDF", "IMG", "1.5 KB", "2 hours ago", "2 files (2 unique, 0 duplicates)", "0 Bytes saved (0%)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewLoading(t *testing.T) {
	m, _ := newTestModel(t, false)
	view := m.View()
	if !strings.Contains(view, "Loading files...") {
		t.Errorf("view missing loading state:\n%s", view)
	}
	if !strings.Contains(view, "Loading storage statistics...") {
		t.Errorf("view missing stats loading state:\n%s", view)
	}
}

func TestFilterCycling(t *testing.T) {
	m, s := newTestModel(t, true)

	m, _ = update(m, key("t"))
	if got := s.Filters().FileType; got != "application/pdf" {
		t.Errorf("file type filter = %q, want application/pdf", got)
	}
	if view := m.View(); !strings.Contains(view, "Type: PDF") {
		t.Errorf("view missing type filter:\n%s", view)
	}

	m, _ = update(m, key("s"))
	if f := s.Filters(); f.MinSizeMB != 0 || f.MaxSizeMB != 1 {
		t.Errorf("size filter = %d-%d, want 0-1", f.MinSizeMB, f.MaxSizeMB)
	}
	if view := m.View(); !strings.Contains(view, "Size: 0-1MB") {
		t.Errorf("view missing size filter:\n%s", view)
	}

	m, _ = update(m, key("c"))
	if !s.Filters().IsZero() {
		t.Errorf("filters not cleared: %+v", s.Filters())
	}
	s.Wait()
}

func TestSearchTyping(t *testing.T) {
	m, s := newTestModel(t, true)

	m, _ = update(m, key("/"))
	if !m.searching {
		t.Fatal("search box not focused")
	}
	for _, r := range []string{"r", "e", "p"} {
		m, _ = update(m, key(r))
	}
	if got := s.SearchQuery(); got != "rep" {
		t.Errorf("search query = %q, want rep", got)
	}

	m, _ = update(m, key("enter"))
	if m.searching {
		t.Error("enter should leave the search box")
	}
	if got := s.ActiveKey().Query; got != "rep" {
		t.Errorf("active query = %q after enter", got)
	}
	s.Wait()

	m, _ = update(m, EventMsg{Kind: store.EventListing})
	view := m.View()
	if !strings.Contains(view, `1 results for "rep"`) || strings.Contains(view, "photo.png") {
		t.Errorf("search results not rendered:\n%s", view)
	}
}

func TestEnterShowsDetails(t *testing.T) {
	m, s := newTestModel(t, true)

	m, _ = update(m, key("down"))
	m, cmd := update(m, key("enter"))
	if got := s.Selected(); got != "b" {
		t.Fatalf("selected = %q, want b", got)
	}
	if cmd == nil {
		t.Fatal("enter should load details")
	}
	m, _ = update(m, cmd())

	view := m.View()
	for _, want := range []string{"Hash", "def456", "PNG Image (image/png)", "2,048 bytes"} {
		if !strings.Contains(view, want) {
			t.Errorf("details missing %q:\n%s", want, view)
		}
	}

	m, _ = update(m, key("esc"))
	if s.Selected() != "" {
		t.Error("esc should clear the selection")
	}
	if strings.Contains(m.View(), "def456") {
		t.Error("details still shown after esc")
	}
}

func TestDeleteKey(t *testing.T) {
	m, s := newTestModel(t, true)

	m, cmd := update(m, key("d"))
	if cmd == nil {
		t.Fatal("d should start a delete")
	}
	m, _ = update(m, cmd())
	s.Wait()
	m, _ = update(m, EventMsg{Kind: store.EventListing})

	view := m.View()
	if !strings.Contains(view, "Deleted report.pdf") {
		t.Errorf("missing delete confirmation:\n%s", view)
	}
	if !strings.Contains(view, "1 of 1 files") {
		t.Errorf("deleted file still listed:\n%s", view)
	}
}

func TestRolledBackDeleteFlashes(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, _ = update(m, EventMsg{Kind: store.EventMutation, Operation: "delete", FileID: "a", State: store.MutationRolledBack, Err: errors.New("boom")})
	if view := m.View(); !strings.Contains(view, "Delete failed, file restored: boom") {
		t.Errorf("rollback not reported:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, true)

	_, cmd := update(m, key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}
