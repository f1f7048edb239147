package filevault

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Download streams a file's content to the destination path.
//
// Example:
//
//	err := client.Download(ctx, record, "/tmp/report.pdf", &filevault.DownloadOptions{
//	    OnProgress: func(p filevault.DownloadProgress) {
//	        fmt.Printf("Download: %d%%\n", p.Percentage)
//	    },
//	})
func (c *Client) Download(ctx context.Context, file *FileRecord, destination string, opts *DownloadOptions) error {
	if opts == nil {
		opts = &DownloadOptions{}
	}

	destPath, err := filepath.Abs(destination)
	if err != nil {
		return fmt.Errorf("resolving destination path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	// Refuse to follow symlinks at the destination
	if info, err := os.Lstat(destPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("destination is a symbolic link, refusing to overwrite for security")
		}
		if !opts.Overwrite {
			return fmt.Errorf("destination file already exists, set Overwrite option to true to replace")
		}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}

	if err := c.DownloadToWriter(ctx, file, out, opts); err != nil {
		out.Close()
		os.Remove(destPath)
		return err
	}

	return out.Close()
}

// DownloadToWriter streams a file's content to w.
func (c *Client) DownloadToWriter(ctx context.Context, file *FileRecord, w io.Writer, opts *DownloadOptions) error {
	if file == nil {
		return &ValidationError{Field: "file", Message: "is required"}
	}
	if file.FileURL == "" {
		return &ValidationError{Field: "file_url", Message: "is empty"}
	}
	if opts == nil {
		opts = &DownloadOptions{}
	}

	resp, err := c.request(ctx, http.MethodGet, file.FileURL, nil, "")
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return handleResponse(resp, nil)
	}
	defer resp.Body.Close()

	contentLength, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)

	var reader io.Reader = resp.Body
	if opts.OnProgress != nil {
		reader = &progressDownloadReader{
			reader:     resp.Body,
			totalBytes: contentLength,
			onProgress: opts.OnProgress,
		}
	}

	if _, err := io.Copy(w, reader); err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}

	return nil
}

// progressDownloadReader wraps an io.Reader to track download progress.
type progressDownloadReader struct {
	reader     io.Reader
	totalBytes int64
	downloaded int64
	onProgress func(DownloadProgress)
}

func (pr *progressDownloadReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		percentage := -1
		if pr.totalBytes > 0 {
			percentage = int(float64(pr.downloaded) / float64(pr.totalBytes) * 100)
		}
		pr.onProgress(DownloadProgress{
			BytesDownloaded: pr.downloaded,
			TotalBytes:      pr.totalBytes,
			Percentage:      percentage,
		})
	}
	return n, err
}
