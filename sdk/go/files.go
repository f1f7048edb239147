package filevault

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListFiles retrieves the files matching the given filters.
//
// Example:
//
//	listing, err := client.ListFiles(ctx, filevault.ListOptions{FileType: "application/pdf"})
//	for _, f := range listing.Files {
//	    fmt.Printf("%s: %s (%d bytes)\n", f.ID, f.OriginalFilename, f.Size)
//	}
func (c *Client) ListFiles(ctx context.Context, opts ListOptions) (*FileListing, error) {
	path := "/files/"
	if q := encodeListOptions(opts).Encode(); q != "" {
		path += "?" + q
	}

	resp, err := c.request(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var listing FileListing
	if err := handleResponse(resp, &listing); err != nil {
		return nil, err
	}
	if listing.Files == nil {
		listing.Files = []FileRecord{}
	}

	return &listing, nil
}

// SearchFiles performs a case-insensitive filename search combined with filters.
func (c *Client) SearchFiles(ctx context.Context, query string, opts ListOptions) (*FileListing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Message: "cannot be empty"}
	}

	params := encodeListOptions(opts)
	params.Set("q", query)

	resp, err := c.request(ctx, http.MethodGet, "/files/search/?"+params.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var listing FileListing
	if err := handleResponse(resp, &listing); err != nil {
		return nil, err
	}
	if listing.Files == nil {
		listing.Files = []FileRecord{}
	}
	if listing.Query == "" {
		listing.Query = query
	}

	return &listing, nil
}

// GetFileDetails retrieves a single file's metadata.
//
// Example:
//
//	file, err := client.GetFileDetails(ctx, id)
//	if errors.Is(err, filevault.ErrNotFound) {
//	    fmt.Println("File was deleted")
//	}
func (c *Client) GetFileDetails(ctx context.Context, id string) (*FileRecord, error) {
	if err := validateFileID(id); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/files/%s/", url.PathEscape(id)), nil, "")
	if err != nil {
		return nil, err
	}

	var file FileRecord
	if err := handleResponse(resp, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

// DeleteFile deletes a file by ID. A file that is already gone yields an
// error matching ErrNotFound; callers that race other writers should treat
// it as success.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if err := validateFileID(id); err != nil {
		return err
	}

	resp, err := c.request(ctx, http.MethodDelete, fmt.Sprintf("/files/%s/", url.PathEscape(id)), nil, "")
	if err != nil {
		return err
	}

	return handleResponse(resp, nil)
}

// GetStorageStats retrieves the server's deduplication statistics.
func (c *Client) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	resp, err := c.request(ctx, http.MethodGet, "/files/storage_stats/", nil, "")
	if err != nil {
		return nil, err
	}

	var stats StorageStats
	if err := handleResponse(resp, &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}
