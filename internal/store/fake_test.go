package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	filevault "github.com/fjmerc/filevault/sdk/go"
)

// fakeAPI is an in-memory backend. Hooks run before the operation and may
// block or return an error to fail it.
type fakeAPI struct {
	mu      sync.Mutex
	files   []filevault.FileRecord
	calls   map[string]int
	queries []string
	filters []filevault.ListOptions
	nextID  int

	onList    func(ctx context.Context, n int) error
	onDelete  func(ctx context.Context, id string) error
	onDetails func(ctx context.Context, id string, n int) error
	onStats   func(ctx context.Context, n int) error
	onUpload  func(ctx context.Context, name string) (*filevault.UploadResult, error)
}

func newFakeAPI(files ...filevault.FileRecord) *fakeAPI {
	return &fakeAPI{files: files, calls: make(map[string]int)}
}

func record(id, name string, size int64, hash string) filevault.FileRecord {
	return filevault.FileRecord{
		ID:               id,
		OriginalFilename: name,
		FileType:         "text/plain",
		Size:             size,
		UploadedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FileHash:         hash,
		FileURL:          "http://localhost:8000/media/uploads/" + name,
	}
}

func (f *fakeAPI) inc(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.files {
		if rec.ID == id {
			f.files = append(f.files[:i:i], f.files[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakeAPI) listing(query string) *filevault.FileListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := []filevault.FileRecord{}
	for _, rec := range f.files {
		if query == "" || strings.Contains(strings.ToLower(rec.OriginalFilename), strings.ToLower(query)) {
			files = append(files, rec)
		}
	}
	return &filevault.FileListing{Files: files, Total: len(files), Query: query}
}

func (f *fakeAPI) ListFiles(ctx context.Context, opts filevault.ListOptions) (*filevault.FileListing, error) {
	n := f.inc("list")
	f.mu.Lock()
	f.filters = append(f.filters, opts)
	f.mu.Unlock()
	if f.onList != nil {
		if err := f.onList(ctx, n); err != nil {
			return nil, err
		}
	}
	return f.listing(""), nil
}

func (f *fakeAPI) SearchFiles(ctx context.Context, query string, opts filevault.ListOptions) (*filevault.FileListing, error) {
	f.inc("search")
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.filters = append(f.filters, opts)
	f.mu.Unlock()
	return f.listing(query), nil
}

func (f *fakeAPI) GetFileDetails(ctx context.Context, id string) (*filevault.FileRecord, error) {
	n := f.inc("details")
	if f.onDetails != nil {
		if err := f.onDetails(ctx, id, n); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.files {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, notFoundError()
}

func (f *fakeAPI) DeleteFile(ctx context.Context, id string) error {
	f.inc("delete")
	if f.onDelete != nil {
		if err := f.onDelete(ctx, id); err != nil {
			return err
		}
	}
	if !f.remove(id) {
		return notFoundError()
	}
	return nil
}

func (f *fakeAPI) Upload(ctx context.Context, filename string, r io.Reader, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	f.inc("upload")
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f.onUpload != nil {
		return f.onUpload(ctx, filename)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("up-%d", f.nextID)
	f.files = append(f.files, record(id, filename, int64(len(content)), fmt.Sprintf("%x", content)))
	return &filevault.UploadResult{ID: id, Message: "File uploaded successfully"}, nil
}

func (f *fakeAPI) UploadFile(ctx context.Context, path string, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	f.inc("upload_file")
	if f.onUpload != nil {
		return f.onUpload(ctx, filepath.Base(path))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("up-%d", f.nextID)
	f.files = append(f.files, record(id, filepath.Base(path), 1, path))
	return &filevault.UploadResult{ID: id}, nil
}

func (f *fakeAPI) GetStorageStats(ctx context.Context) (*filevault.StorageStats, error) {
	n := f.inc("stats")
	if f.onStats != nil {
		if err := f.onStats(ctx, n); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, actual int64
	seen := map[string]bool{}
	for _, rec := range f.files {
		total += rec.Size
		if !seen[rec.FileHash] {
			seen[rec.FileHash] = true
			actual += rec.Size
		}
	}
	stats := filevault.ComputeStorageStats(len(f.files), len(seen), total, actual)
	return &stats, nil
}

func notFoundError() error {
	return &filevault.APIError{StatusCode: http.StatusNotFound, Message: "Not found.", Err: filevault.ErrNotFound}
}

func serverError() error {
	return &filevault.APIError{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error", Err: filevault.ErrServer}
}

// newTestStore creates a store with fast timings that is closed when the test ends.
func newTestStore(t *testing.T, api API, configure func(*Options)) *Store {
	t.Helper()
	opts := DefaultOptions()
	opts.DebounceDelay = 20 * time.Millisecond
	opts.RetryInterval = time.Millisecond
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if configure != nil {
		configure(&opts)
	}
	s := New(api, opts)
	t.Cleanup(s.Close)
	return s
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func ids(l *filevault.FileListing) []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Files))
	for _, f := range l.Files {
		out = append(out, f.ID)
	}
	return out
}
