// Package filevault provides a Go client SDK for the FileVault deduplicating file store.
package filevault

import (
	"net/http"
	"time"
)

// FileRecord represents a stored file as reported by the server.
type FileRecord struct {
	// ID is the opaque, stable file identifier.
	ID string `json:"id"`
	// OriginalFilename is the name the file was uploaded with.
	OriginalFilename string `json:"original_filename"`
	// FileType is the MIME type recorded at upload.
	FileType string `json:"file_type"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// UploadedAt is the upload timestamp.
	UploadedAt time.Time `json:"uploaded_at"`
	// File is the server-side storage locator.
	File string `json:"file"`
	// FileHash is the content hash used for deduplication.
	FileHash string `json:"file_hash"`
	// FileURL is the absolute download URL.
	FileURL string `json:"file_url"`
	// ReferenceFile is the locator of the original blob when IsReference is set.
	ReferenceFile string `json:"reference_file,omitempty"`
	// IsReference marks a logical alias of content that was already stored.
	IsReference bool `json:"is_reference"`
	// OriginalFileURL is the download URL of the original file (references only).
	OriginalFileURL string `json:"original_file_url,omitempty"`
}

// FileListing is the result of a list or search request.
type FileListing struct {
	// Files is the server-ordered list of matching files.
	Files []FileRecord `json:"files"`
	// Total is the number of matching records server-side.
	Total int `json:"total"`
	// Query echoes the search query (search results only).
	Query string `json:"query,omitempty"`
}

// Contains reports whether the listing holds a record with the given ID.
func (l *FileListing) Contains(id string) bool {
	if l == nil {
		return false
	}
	for _, f := range l.Files {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Without returns a copy of the listing with the record removed and the
// total decremented. The second return value is false when the record was
// not present, in which case the original listing is returned unchanged.
func (l *FileListing) Without(id string) (*FileListing, bool) {
	if !l.Contains(id) {
		return l, false
	}
	files := make([]FileRecord, 0, len(l.Files)-1)
	for _, f := range l.Files {
		if f.ID != id {
			files = append(files, f)
		}
	}
	total := l.Total - 1
	if total < 0 {
		total = 0
	}
	return &FileListing{Files: files, Total: total, Query: l.Query}, true
}

// FileSummary identifies an existing file in upload responses and conflicts.
type FileSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadResult represents the result of a successful upload.
type UploadResult struct {
	// ID is the new (or aliasing) record's ID.
	ID string `json:"id,omitempty"`
	// Message is the server's human readable outcome.
	Message string `json:"message,omitempty"`
	// IsReference is set when the content already existed and a reference was created.
	IsReference bool `json:"is_reference,omitempty"`
	// OriginalFile describes the file the reference points to.
	OriginalFile *FileSummary `json:"original_file,omitempty"`
}

// StorageStats holds the server's deduplication counters.
type StorageStats struct {
	TotalFiles      int     `json:"total_files"`
	UniqueFiles     int     `json:"unique_files"`
	DuplicateFiles  int     `json:"duplicate_files"`
	TotalSize       int64   `json:"total_size"`
	ActualSize      int64   `json:"actual_size"`
	SpaceSaved      int64   `json:"space_saved"`
	PercentageSaved float64 `json:"percentage_saved"`
}

// ComputeStorageStats derives the dependent counters from the four base values.
func ComputeStorageStats(totalFiles, uniqueFiles int, totalSize, actualSize int64) StorageStats {
	s := StorageStats{
		TotalFiles:     totalFiles,
		UniqueFiles:    uniqueFiles,
		DuplicateFiles: totalFiles - uniqueFiles,
		TotalSize:      totalSize,
		ActualSize:     actualSize,
		SpaceSaved:     totalSize - actualSize,
	}
	if totalSize > 0 {
		s.PercentageSaved = 100 * float64(s.SpaceSaved) / float64(totalSize)
	}
	return s
}

// Consistent reports whether the derived counters agree with the base values.
func (s StorageStats) Consistent() bool {
	want := ComputeStorageStats(s.TotalFiles, s.UniqueFiles, s.TotalSize, s.ActualSize)
	if s.DuplicateFiles != want.DuplicateFiles || s.SpaceSaved != want.SpaceSaved {
		return false
	}
	diff := s.PercentageSaved - want.PercentageSaved
	return diff > -0.01 && diff < 0.01
}

// ListOptions filters list and search requests. Zero values are omitted.
type ListOptions struct {
	// FileType is a MIME type, a bare extension ("pdf") or "other".
	FileType string
	// MinSize is the lower size bound in bytes.
	MinSize *int64
	// MaxSize is the upper size bound in bytes.
	MaxSize *int64
	// StartDate is an ISO date (YYYY-MM-DD) lower bound on upload time.
	StartDate string
	// EndDate is an ISO date (YYYY-MM-DD) upper bound on upload time.
	EndDate string
}

// DownloadOptions configures a file download.
type DownloadOptions struct {
	// OnProgress is called with download progress updates.
	OnProgress func(DownloadProgress)
	// Overwrite allows replacing an existing file at the destination.
	// If false (default), downloading to an existing file returns an error.
	Overwrite bool
}

// DownloadProgress provides information about download progress.
type DownloadProgress struct {
	// BytesDownloaded is bytes downloaded so far.
	BytesDownloaded int64
	// TotalBytes is total bytes to download (0 if unknown).
	TotalBytes int64
	// Percentage is completion percentage (0-100, or -1 if unknown).
	Percentage int
}

// ClientConfig contains configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api (required).
	BaseURL string
	// Timeout is the request timeout (default: 5 minutes).
	Timeout time.Duration
	// WrapTransport, when set, wraps the client's transport (used for instrumentation).
	WrapTransport func(http.RoundTripper) http.RoundTripper
	// RateLimit caps requests per second (0 disables limiting).
	RateLimit float64
	// UserAgent is sent with every request (default: filevault-go).
	UserAgent string
	// InsecureSkipVerify disables TLS certificate verification (dangerous!).
	InsecureSkipVerify bool
}

// apiErrorResponse is the raw error body returned by the server.
type apiErrorResponse struct {
	Error        string       `json:"error"`
	Detail       string       `json:"detail"`
	ExistingFile *FileSummary `json:"existing_file"`
}
