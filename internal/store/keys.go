package store

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	filevault "github.com/fjmerc/filevault/sdk/go"
)

// Cache key prefixes accepted by Invalidate.
const (
	PrefixFiles    = "files/"
	PrefixListings = "files/list"
	PrefixDetails  = "files/details/"
	KeyStats       = "stats"
)

const bytesPerMB = 1024 * 1024

// dateLayout is the ISO date format accepted by the backend's date filters.
const dateLayout = "2006-01-02"

// FilterCriteria is the user-facing filter state. Sizes are whole megabytes
// with 0 meaning unbounded; dates are YYYY-MM-DD or empty.
type FilterCriteria struct {
	FileType  string
	MinSizeMB int64
	MaxSizeMB int64
	StartDate string
	EndDate   string
}

// SizeRange is a preset size filter offered by the UI.
type SizeRange struct {
	Label string
	MinMB int64
	MaxMB int64
}

// SizeRanges are the preset size filters, smallest first.
var SizeRanges = []SizeRange{
	{"0-1MB", 0, 1},
	{"1-5MB", 1, 5},
	{"5-10MB", 5, 10},
	{"10-50MB", 10, 50},
	{"50-100MB", 50, 100},
	{"100MB+", 100, 1000},
}

// Validate checks the criteria before they are committed.
func (f FilterCriteria) Validate() error {
	if f.MinSizeMB < 0 {
		return &filevault.ValidationError{Field: "min_size", Message: "cannot be negative"}
	}
	if f.MaxSizeMB < 0 {
		return &filevault.ValidationError{Field: "max_size", Message: "cannot be negative"}
	}
	if f.MaxSizeMB > 0 && f.MinSizeMB > f.MaxSizeMB {
		return &filevault.ValidationError{Field: "min_size", Message: "cannot exceed max_size"}
	}

	var start, end time.Time
	var err error
	if f.StartDate != "" {
		if start, err = time.Parse(dateLayout, f.StartDate); err != nil {
			return &filevault.ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"}
		}
	}
	if f.EndDate != "" {
		if end, err = time.Parse(dateLayout, f.EndDate); err != nil {
			return &filevault.ValidationError{Field: "end_date", Message: "must be YYYY-MM-DD"}
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return &filevault.ValidationError{Field: "end_date", Message: "cannot be before start_date"}
	}
	return nil
}

// IsZero reports whether no filter is set.
func (f FilterCriteria) IsZero() bool {
	return f == FilterCriteria{}
}

// ListOptions converts the criteria to wire filters, megabytes to bytes.
func (f FilterCriteria) ListOptions() filevault.ListOptions {
	opts := filevault.ListOptions{
		FileType:  strings.TrimSpace(f.FileType),
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}
	if f.MinSizeMB > 0 {
		v := f.MinSizeMB * bytesPerMB
		opts.MinSize = &v
	}
	if f.MaxSizeMB > 0 {
		v := f.MaxSizeMB * bytesPerMB
		opts.MaxSize = &v
	}
	return opts
}

// SizeLabel names the preset matching the size bounds, or describes them.
func (f FilterCriteria) SizeLabel() string {
	if f.MinSizeMB == 0 && f.MaxSizeMB == 0 {
		return "All sizes"
	}
	for _, r := range SizeRanges {
		if r.MinMB == f.MinSizeMB && r.MaxMB == f.MaxSizeMB {
			return r.Label
		}
	}
	if f.MaxSizeMB == 0 {
		return fmt.Sprintf("%dMB+", f.MinSizeMB)
	}
	return fmt.Sprintf("%d-%dMB", f.MinSizeMB, f.MaxSizeMB)
}

// ListKey identifies one cached listing: a search query (empty for a plain
// listing) combined with filters.
type ListKey struct {
	Query   string
	Filters FilterCriteria
}

// String returns the canonical cache key. Parameters are sorted, so equal
// keys always encode identically.
func (k ListKey) String() string {
	v := url.Values{}
	opts := k.Filters.ListOptions()
	if q := strings.TrimSpace(k.Query); q != "" {
		v.Set("q", q)
	}
	if opts.FileType != "" {
		v.Set("file_type", opts.FileType)
	}
	if opts.MinSize != nil {
		v.Set("min_size", strconv.FormatInt(*opts.MinSize, 10))
	}
	if opts.MaxSize != nil {
		v.Set("max_size", strconv.FormatInt(*opts.MaxSize, 10))
	}
	if opts.StartDate != "" {
		v.Set("start_date", opts.StartDate)
	}
	if opts.EndDate != "" {
		v.Set("end_date", opts.EndDate)
	}
	return PrefixListings + "?" + v.Encode()
}

// normalized trims the query so that keys differing only in surrounding
// whitespace share a cache entry.
func (k ListKey) normalized() ListKey {
	k.Query = strings.TrimSpace(k.Query)
	k.Filters.FileType = strings.TrimSpace(k.Filters.FileType)
	return k
}

func detailKey(id string) string {
	return PrefixDetails + id
}
