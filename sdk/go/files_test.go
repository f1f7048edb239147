package filevault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRecord(id, name string) FileRecord {
	return FileRecord{
		ID:               id,
		OriginalFilename: name,
		FileType:         "application/pdf",
		Size:             2048,
		UploadedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FileHash:         "d41d8cd98f00b204e9800998ecf8427e",
	}
}

func TestListFilesEncodesFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"file_type":  "application/pdf",
			"min_size":   "1048576",
			"max_size":   "5242880",
			"start_date": "2024-01-01",
			"end_date":   "2024-12-31",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s = %q, want %q", k, got, v)
			}
		}
		json.NewEncoder(w).Encode(FileListing{
			Files: []FileRecord{testRecord("a", "a.pdf"), testRecord("b", "b.pdf")},
			Total: 2,
		})
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL + "/api"})
	listing, err := client.ListFiles(context.Background(), ListOptions{
		FileType:  "application/pdf",
		MinSize:   int64Ptr(1 << 20),
		MaxSize:   int64Ptr(5 << 20),
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
	})
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}

	if listing.Total != 2 || len(listing.Files) != 2 {
		t.Fatalf("listing = %+v, want 2 files", listing)
	}
	if listing.Files[0].ID != "a" || listing.Files[1].ID != "b" {
		t.Error("listing order should be preserved")
	}
}

func TestListFilesNoFiltersHasNoQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query string, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"files":null,"total":0}`))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	listing, err := client.ListFiles(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}
	if listing.Files == nil {
		t.Error("Files should be an empty slice, not nil")
	}
}

func TestSearchFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/search/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "report" {
			t.Errorf("q = %q, want report", got)
		}
		if got := r.URL.Query().Get("file_type"); got != "pdf" {
			t.Errorf("file_type = %q, want pdf", got)
		}
		json.NewEncoder(w).Encode(FileListing{
			Files: []FileRecord{testRecord("a", "report.pdf")},
			Total: 1,
			Query: "report",
		})
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	listing, err := client.SearchFiles(context.Background(), " report ", ListOptions{FileType: "pdf"})
	if err != nil {
		t.Fatalf("SearchFiles error: %v", err)
	}
	if listing.Query != "report" || listing.Total != 1 {
		t.Errorf("listing = %+v", listing)
	}
}

func TestSearchFilesRequiresQuery(t *testing.T) {
	client, _ := NewClient(ClientConfig{BaseURL: "http://localhost:8000"})
	_, err := client.SearchFiles(context.Background(), "  ", ListOptions{})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGetFileDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/abc/":
			rec := testRecord("abc", "notes.txt")
			rec.IsReference = true
			rec.OriginalFileURL = "http://files.example.com/uploads/orig.txt"
			json.NewEncoder(w).Encode(rec)
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Not found."})
		}
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	ctx := context.Background()

	file, err := client.GetFileDetails(ctx, "abc")
	if err != nil {
		t.Fatalf("GetFileDetails error: %v", err)
	}
	if !file.IsReference || file.OriginalFileURL == "" {
		t.Errorf("reference fields not decoded: %+v", file)
	}
	if !file.UploadedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("UploadedAt = %v", file.UploadedAt)
	}

	_, err = client.GetFileDetails(ctx, "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "Not found." {
		t.Errorf("Message = %q, want the detail field", apiErr.Message)
	}
}

func TestDeleteFile(t *testing.T) {
	deleted := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/files/"), "/")
		if deleted[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		deleted[id] = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	ctx := context.Background()

	if err := client.DeleteFile(ctx, "abc"); err != nil {
		t.Fatalf("first delete error: %v", err)
	}

	err := client.DeleteFile(ctx, "abc")
	if !IsNotFound(err) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", StatusCode(err))
	}
}

func TestGetStorageStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/storage_stats/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ComputeStorageStats(5, 3, 1000, 400))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	stats, err := client.GetStorageStats(context.Background())
	if err != nil {
		t.Fatalf("GetStorageStats error: %v", err)
	}
	if stats.SpaceSaved != 600 || stats.PercentageSaved != 60 || stats.DuplicateFiles != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.Consistent() {
		t.Error("stats should be consistent")
	}
}

func TestComputeStorageStats(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		unique      int
		totalSize   int64
		actualSize  int64
		wantSaved   int64
		wantPercent float64
	}{
		{"dedup", 4, 3, 1000, 400, 600, 60},
		{"empty", 0, 0, 0, 0, 0, 0},
		{"no duplicates", 2, 2, 500, 500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeStorageStats(tt.total, tt.unique, tt.totalSize, tt.actualSize)
			if s.SpaceSaved != tt.wantSaved {
				t.Errorf("SpaceSaved = %d, want %d", s.SpaceSaved, tt.wantSaved)
			}
			if s.PercentageSaved != tt.wantPercent {
				t.Errorf("PercentageSaved = %v, want %v", s.PercentageSaved, tt.wantPercent)
			}
			if s.TotalFiles != s.UniqueFiles+s.DuplicateFiles {
				t.Error("total_files must equal unique + duplicate")
			}
		})
	}

	bad := ComputeStorageStats(4, 3, 1000, 400)
	bad.SpaceSaved = 1
	if bad.Consistent() {
		t.Error("tampered stats should not be consistent")
	}
}

func TestFileListingWithout(t *testing.T) {
	listing := &FileListing{Files: []FileRecord{testRecord("a", "a"), testRecord("b", "b")}, Total: 2}

	next, ok := listing.Without("a")
	if !ok {
		t.Fatal("expected removal")
	}
	if next.Total != 1 || len(next.Files) != 1 || next.Files[0].ID != "b" {
		t.Errorf("next = %+v", next)
	}
	if listing.Total != 2 || len(listing.Files) != 2 {
		t.Error("original listing must not be modified")
	}

	same, ok := listing.Without("zzz")
	if ok || same != listing {
		t.Error("absent record should return the original listing")
	}
}

func TestUploadSendsMultipartWithDetectedType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/files/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing form file: %v", err)
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if !bytes.HasPrefix(body, []byte("%PDF-1.4")) {
			t.Errorf("unexpected body %q", body)
		}
		if header.Filename != "report.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("part Content-Type = %q, want application/pdf", ct)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(UploadResult{ID: "new", Message: "File uploaded successfully"})
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})

	var last UploadProgress
	content := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
	result, err := client.Upload(context.Background(), "report.pdf", bytes.NewReader(content), &UploadOptions{
		Size:       int64(len(content)),
		OnProgress: func(p UploadProgress) { last = p },
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if result.ID != "new" || result.IsReference {
		t.Errorf("result = %+v", result)
	}
	if last.Percentage != 100 {
		t.Errorf("final progress = %d%%, want 100", last.Percentage)
	}
}

func TestUploadReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ref","message":"File reference created","is_reference":true,
			"original_file":{"id":"orig","name":"a.txt","size":5,"uploaded_at":"2024-03-01T12:00:00Z"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	result, err := client.Upload(context.Background(), "b.txt", strings.NewReader("hello"), &UploadOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if !result.IsReference || result.OriginalFile == nil || result.OriginalFile.ID != "orig" {
		t.Errorf("result = %+v", result)
	}
}

func TestUploadConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"File already exists",
			"existing_file":{"id":"orig","name":"a.txt","size":5,"uploaded_at":"2024-03-01T12:00:00Z"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := client.Upload(context.Background(), "b.txt", strings.NewReader("hello"), nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "File already exists" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.ExistingFile == nil || apiErr.ExistingFile.Name != "a.txt" || apiErr.ExistingFile.Size != 5 {
		t.Fatalf("ExistingFile = %+v", apiErr.ExistingFile)
	}

	if msg := apiErr.ConflictMessage("a.txt"); !strings.Contains(msg, "named \"a.txt\"") {
		t.Errorf("same-name message = %q", msg)
	}
	if msg := apiErr.ConflictMessage("b.txt"); !strings.Contains(msg, "same content") {
		t.Errorf("same-content message = %q", msg)
	}
}

func TestUploadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing form file: %v", err)
		}
		if header.Filename != "notes.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("part Content-Type = %q, want text/plain", ct)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(UploadResult{ID: "n1"})
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text notes\n"), 0644); err != nil {
		t.Fatal(err)
	}

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	if _, err := client.UploadFile(context.Background(), path, nil); err != nil {
		t.Fatalf("UploadFile error: %v", err)
	}

	if _, err := client.UploadFile(context.Background(), dir, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("uploading a directory should fail validation, got %v", err)
	}
}

func TestServerErrorFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := client.GetStorageStats(context.Background())

	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
	var apiErr *APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "Bad Gateway" {
		t.Errorf("Message = %q, want status text", apiErr.Message)
	}
}

func TestUnreadableResponseIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>proxy error page</html>"))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := client.ListFiles(context.Background(), ListOptions{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", StatusCode(err))
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("decode cause not preserved: %v", err)
	}
}

func TestMalformedDownloadURLIsNormalized(t *testing.T) {
	client, _ := NewClient(ClientConfig{BaseURL: "http://localhost:8000/api"})
	file := &FileRecord{ID: "x", OriginalFilename: "x.txt", FileURL: "http://bad host/x.txt"}

	err := client.DownloadToWriter(context.Background(), file, io.Discard, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want a 500 transport error", err)
	}
}

func TestErrorSanitization(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Invalid token", "request failed"},
		{"Invalid password", "request failed"},
		{"Authorization failed", "request failed"},
		{"File not found", "File not found"},
		{"File already exists", "File already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeErrorMessage(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeErrorMessage(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "id", Message: "cannot be empty"}

	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should wrap ErrValidation")
	}
	if !strings.Contains(err.Error(), "id") {
		t.Errorf("error string should contain field name: %s", err.Error())
	}
}

func TestDownloadToWriter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/uploads/x.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", "5")
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL + "/api"})
	record := &FileRecord{ID: "x", FileURL: server.URL + "/media/uploads/x.txt"}

	var buf bytes.Buffer
	var last DownloadProgress
	err := client.DownloadToWriter(context.Background(), record, &buf, &DownloadOptions{
		OnProgress: func(p DownloadProgress) { last = p },
	})
	if err != nil {
		t.Fatalf("DownloadToWriter error: %v", err)
	}
	if buf.String() != "hello" || last.Percentage != 100 {
		t.Errorf("got %q at %d%%", buf.String(), last.Percentage)
	}

	missing := &FileRecord{ID: "y", FileURL: server.URL + "/media/uploads/y.txt"}
	if err := client.DownloadToWriter(context.Background(), missing, &buf, nil); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDownloadRefusesExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new content"))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{BaseURL: server.URL})
	record := &FileRecord{ID: "x", FileURL: server.URL + "/f"}

	dest := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(dest, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := client.Download(context.Background(), record, dest, nil); err == nil {
		t.Fatal("expected error for existing destination")
	}
	if err := client.Download(context.Background(), record, dest, &DownloadOptions{Overwrite: true}); err != nil {
		t.Fatalf("Download with overwrite error: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "new content" {
		t.Errorf("dest = %q", got)
	}
}
