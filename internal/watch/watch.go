// Package watch uploads files as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/metrics"
	"github.com/fjmerc/filevault/internal/store"
)

// Uploader is implemented by *store.Store.
type Uploader interface {
	UploadFile(ctx context.Context, path string, opts *filevault.UploadOptions) (*filevault.UploadResult, error)
}

// Upload statuses reported in Result and the watch uploads metric.
const (
	StatusUploaded  = "uploaded"
	StatusReference = "reference"
	StatusConflict  = "conflict"
	StatusError     = "error"
)

// Result is the outcome of one watcher upload.
type Result struct {
	Path   string
	Status string
	Upload *filevault.UploadResult
	// Message explains a conflict or error in user-facing terms.
	Message string
	Err     error
}

// Options configures a Watcher.
type Options struct {
	// QuietDelay is how long a path must go without events before it is uploaded.
	QuietDelay time.Duration
	// Logger receives watcher logs (default: slog.Default()).
	Logger *slog.Logger
	// OnResult, if set, is called after every upload attempt.
	OnResult func(Result)
}

// Watcher uploads regular files created or written in one directory.
type Watcher struct {
	dir   string
	up    Uploader
	opts  Options
	log   *slog.Logger
	fsw   *fsnotify.Watcher
	sched *store.Scheduler

	mu      sync.Mutex
	running bool
}

// New starts watching dir. Events are queued until Run is called.
func New(dir string, up Uploader, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if opts.QuietDelay <= 0 {
		opts.QuietDelay = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:   dir,
		up:    up,
		opts:  opts,
		log:   logger.With("component", "watch", "dir", dir),
		fsw:   fsw,
		sched: store.NewScheduler(),
	}, nil
}

// Run processes events until ctx is cancelled. Uploads still waiting for
// their quiet period are dropped; uploads already running are awaited.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.sched.Close()
		w.sched.Wait()
		w.fsw.Close()
	}()

	w.log.Info("watching directory for new files", "quiet_delay", w.opts.QuietDelay)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("directory watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if ignored(filepath.Base(path)) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.sched.Schedule(path, w.opts.QuietDelay, func() { w.upload(ctx, path) })
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.sched.Cancel(path) {
			w.log.Debug("pending upload dropped", "path", path, "op", event.Op.String())
		}
	}
}

// ignored reports whether name looks like a hidden, temporary or partial file.
func ignored(name string) bool {
	switch {
	case strings.HasPrefix(name, "."):
		return true
	case strings.HasSuffix(name, "~"):
		return true
	case strings.HasSuffix(name, ".tmp"), strings.HasSuffix(name, ".part"), strings.HasSuffix(name, ".swp"):
		return true
	}
	return false
}

func (w *Watcher) upload(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	res := Result{Path: path}
	res.Upload, res.Err = w.up.UploadFile(ctx, path, nil)

	var apiErr *filevault.APIError
	switch {
	case res.Err == nil && res.Upload.IsReference:
		res.Status = StatusReference
		res.Message = res.Upload.Message
		w.log.Info("uploaded as reference to existing content", "path", path, "file_id", res.Upload.ID)
	case res.Err == nil:
		res.Status = StatusUploaded
		res.Message = res.Upload.Message
		w.log.Info("uploaded", "path", path, "file_id", res.Upload.ID, "size", info.Size())
	case errors.Is(res.Err, filevault.ErrConflict) && errors.As(res.Err, &apiErr):
		res.Status = StatusConflict
		res.Message = apiErr.ConflictMessage(filepath.Base(path))
		w.log.Warn("upload skipped", "path", path, "reason", res.Message)
	case errors.Is(res.Err, context.Canceled):
		return
	default:
		res.Status = StatusError
		res.Message = res.Err.Error()
		w.log.Error("upload failed", "path", path, "error", res.Err)
	}

	metrics.WatchUploadsTotal.WithLabelValues(res.Status).Inc()
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}
