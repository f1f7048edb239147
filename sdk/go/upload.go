package filevault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the content is inspected to detect its MIME type.
const sniffLen = 3072

// UploadOptions configures a file upload.
type UploadOptions struct {
	// ContentType overrides MIME detection for the uploaded part.
	ContentType string
	// Size is the content length, used for progress percentages (0 if unknown).
	Size int64
	// OnProgress is called with upload progress updates.
	OnProgress func(UploadProgress)
}

// UploadProgress provides information about upload progress.
type UploadProgress struct {
	// BytesUploaded is the number of bytes uploaded so far.
	BytesUploaded int64
	// TotalBytes is the total file size (0 if unknown).
	TotalBytes int64
	// Percentage is the completion percentage (0-100, or -1 if unknown).
	Percentage int
}

// UploadFile uploads the file at filePath.
//
// Example:
//
//	result, err := client.UploadFile(ctx, "/path/to/report.pdf", nil)
//	var apiErr *filevault.APIError
//	if errors.As(err, &apiErr) && apiErr.ExistingFile != nil {
//	    fmt.Println(apiErr.ConflictMessage("report.pdf"))
//	}
func (c *Client) UploadFile(ctx context.Context, filePath string, opts *UploadOptions) (*UploadResult, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("getting file info: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, &ValidationError{Field: "filePath", Message: "is a directory"}
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	o := UploadOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Size == 0 {
		o.Size = fileInfo.Size()
	}

	return c.Upload(ctx, filepath.Base(absPath), file, &o)
}

// Upload uploads content read from r under the given filename. The server
// either stores it, aliases it to identical content (IsReference), or
// rejects it with a 409 carrying the existing file.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, opts *UploadOptions) (*UploadResult, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &UploadOptions{}
	}

	contentType := opts.ContentType
	if contentType == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(r, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading file header: %w", err)
		}
		head = head[:n]
		contentType = detectContentType(head)
		r = io.MultiReader(bytes.NewReader(head), r)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}

	progress := &progressReader{
		reader: r,
		onProgress: func(n int64) {
			if opts.OnProgress == nil {
				return
			}
			pct := -1
			if opts.Size > 0 {
				pct = int(float64(n) / float64(opts.Size) * 100)
			}
			opts.OnProgress(UploadProgress{BytesUploaded: n, TotalBytes: opts.Size, Percentage: pct})
		},
	}

	if _, err := io.Copy(part, progress); err != nil {
		return nil, fmt.Errorf("copying file: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "/files/", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := handleResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// detectContentType sniffs the MIME type and strips parameters such as charset,
// since the server filters on the bare media type.
func detectContentType(head []byte) string {
	detected := mimetype.Detect(head).String()
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader wraps an io.Reader to track read progress.
type progressReader struct {
	reader     io.Reader
	read       int64
	onProgress func(int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.read)
		}
	}
	return n, err
}
