// Package store is the client-side query cache for FileVault. It owns the
// cached listings, file details and storage statistics, composes debounced
// search/filter changes into listing requests, applies deletes
// optimistically and invalidates dependent caches after every mutation.
package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/metrics"
)

// ErrSuperseded is returned to a caller whose fetch was overtaken by a
// mutation, an invalidation or a new selection before any value was cached.
var ErrSuperseded = errors.New("store: request superseded")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// viewTask is the scheduler key shared by search and filter changes, so a
// burst of either collapses into one commit.
const viewTask = "view"

// API is the subset of the SDK client the store depends on.
type API interface {
	ListFiles(ctx context.Context, opts filevault.ListOptions) (*filevault.FileListing, error)
	SearchFiles(ctx context.Context, query string, opts filevault.ListOptions) (*filevault.FileListing, error)
	GetFileDetails(ctx context.Context, id string) (*filevault.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	Upload(ctx context.Context, filename string, r io.Reader, opts *filevault.UploadOptions) (*filevault.UploadResult, error)
	UploadFile(ctx context.Context, path string, opts *filevault.UploadOptions) (*filevault.UploadResult, error)
	GetStorageStats(ctx context.Context) (*filevault.StorageStats, error)
}

// Options configures a Store.
type Options struct {
	// DebounceDelay is the quiet period before a search/filter change is committed.
	DebounceDelay time.Duration
	// ListStaleTime is how long listings and details are served from cache (0 = until invalidated).
	ListStaleTime time.Duration
	// StatsStaleTime is how long storage statistics are served from cache (0 = until invalidated).
	StatsStaleTime time.Duration
	// ListRetries is the number of retries for a failed listing fetch.
	ListRetries int
	// DetailRetries is the number of retries for a failed detail fetch. 404s are never retried.
	DetailRetries int
	// StatsRetries is the number of retries for a failed statistics fetch.
	StatsRetries int
	// RetryInterval is the initial backoff between retries.
	RetryInterval time.Duration
	// CacheSize bounds the number of cached listings.
	CacheSize int
	// Logger receives store logs (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultOptions returns the options used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DebounceDelay:  300 * time.Millisecond,
		StatsStaleTime: time.Minute,
		ListRetries:    1,
		DetailRetries:  3,
		StatsRetries:   3,
		RetryInterval:  time.Second,
		CacheSize:      64,
	}
}

type listingEntry struct {
	key ListKey
	entry[*filevault.FileListing]
}

type detailEntry struct {
	id string
	entry[*filevault.FileRecord]
}

// Store is the client-side cache. Create one per application (or per test)
// with New and release it with Close.
type Store struct {
	api  API
	opts Options
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sched  *Scheduler
	group  singleflight.Group

	mu         sync.Mutex
	listings   *lru.Cache[string, *listingEntry]
	detail     *detailEntry
	selectedID string
	stats      *entry[*filevault.StorageStats]
	rawQuery   string
	rawFilters FilterCriteria
	active     ListKey
	closed     bool

	listenerMu   sync.Mutex
	listeners    map[int]func(Event)
	nextListener int
}

// New creates a store backed by api.
func New(api API, opts Options) *Store {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultOptions().RetryInterval
	}
	if opts.DebounceDelay < 0 {
		opts.DebounceDelay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:       api,
		opts:      opts,
		log:       logger.With("component", "store"),
		ctx:       ctx,
		cancel:    cancel,
		sched:     NewScheduler(),
		listeners: make(map[int]func(Event)),
	}

	// Size is validated above, so NewWithEvict cannot fail.
	s.listings, _ = lru.NewWithEvict(opts.CacheSize, func(key string, e *listingEntry) {
		if e.cancel != nil {
			e.cancel()
		}
		s.log.Debug("listing evicted", "key", key)
	})

	return s
}

// Close cancels pending debounces and in-flight fetches and waits for
// background work to stop.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.sched.Close()
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until pending debounces have fired and background refetches
// have settled.
func (s *Store) Wait() {
	s.sched.Wait()
	s.wg.Wait()
}

// track registers one unit of work with Close and Wait. It fails once the
// store is closed.
func (s *Store) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// background runs fn on a tracked goroutine with the store's context.
func (s *Store) background(fn func(ctx context.Context)) {
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// shared wraps a singleflight fetch so the goroutine running it is tracked.
func (s *Store) shared(fetch func() (interface{}, error)) func() (interface{}, error) {
	return func() (interface{}, error) {
		if !s.track() {
			return nil, ErrClosed
		}
		defer s.wg.Done()
		return fetch()
	}
}

// Listing returns the listing for key, from cache when fresh and fetched
// otherwise. Concurrent callers for the same key share one request.
func (s *Store) Listing(ctx context.Context, key ListKey) (*filevault.FileListing, error) {
	key = key.normalized()
	k := key.String()

	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		e := s.listingEntryLocked(key)
		if e.fresh(time.Now(), s.opts.ListStaleTime) {
			data := e.data
			s.mu.Unlock()
			metrics.CacheLookupsTotal.WithLabelValues("listing", "hit").Inc()
			return data, nil
		}
		s.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("listing", "miss").Inc()

		data, err := await[*filevault.FileListing](ctx, s.group.DoChan(k, s.shared(func() (interface{}, error) {
			return s.fetchListing(key)
		})))
		// A fetch cut off before anything was cached is retried once against
		// the state that superseded it.
		if errors.Is(err, ErrSuperseded) && attempt == 0 {
			continue
		}
		return data, err
	}
}

// Refetch marks the listing for key stale and fetches it.
func (s *Store) Refetch(ctx context.Context, key ListKey) (*filevault.FileListing, error) {
	key = key.normalized()
	s.mu.Lock()
	if e, ok := s.listings.Peek(key.String()); ok {
		e.stale = true
	}
	s.mu.Unlock()
	return s.Listing(ctx, key)
}

// ListingState returns the cached state for key without fetching.
func (s *Store) ListingState(key ListKey) State[*filevault.FileListing] {
	key = key.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.listings.Peek(key.String())
	if !ok {
		return State[*filevault.FileListing]{}
	}
	return e.state()
}

// listingEntryLocked returns the entry for key, creating it if needed.
func (s *Store) listingEntryLocked(key ListKey) *listingEntry {
	k := key.String()
	if e, ok := s.listings.Get(k); ok {
		return e
	}
	e := &listingEntry{key: key}
	s.listings.Add(k, e)
	return e
}

func (s *Store) fetchListing(key ListKey) (*filevault.FileListing, error) {
	k := key.String()

	s.mu.Lock()
	e := s.listingEntryLocked(key)
	ctx, gen := e.begin(s.ctx)
	s.mu.Unlock()
	s.emit(Event{Kind: EventListing, Key: k})

	s.log.Debug("fetching listing", "key", k, "generation", gen)
	data, err := withRetry(ctx, s.opts.ListRetries, s.opts.RetryInterval, func(ctx context.Context) (*filevault.FileListing, error) {
		if key.Query != "" {
			return s.api.SearchFiles(ctx, key.Query, key.Filters.ListOptions())
		}
		return s.api.ListFiles(ctx, key.Filters.ListOptions())
	})

	s.mu.Lock()
	applied := false
	if cur, ok := s.listings.Peek(k); ok && cur == e {
		applied = e.finish(gen, data, err, time.Now())
	} else if gen == e.gen {
		e.fetching = false
	}
	result, resultErr := e.settle(applied, data, err)
	s.mu.Unlock()

	recordFetch("listing", applied, err)
	if err != nil && applied {
		s.log.Warn("listing fetch failed", "key", k, "error", err)
	} else if !applied {
		s.log.Debug("listing response discarded", "key", k, "generation", gen)
	}
	s.emit(Event{Kind: EventListing, Key: k})

	return result, resultErr
}

// await waits for a shared fetch, giving up when ctx ends. The fetch
// itself keeps running for other waiters.
func await[V any](ctx context.Context, ch <-chan singleflight.Result) (V, error) {
	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	}
}

func recordFetch(cache string, applied bool, err error) {
	switch {
	case !applied:
		metrics.FetchesTotal.WithLabelValues(cache, "discarded").Inc()
	case err != nil:
		metrics.FetchesTotal.WithLabelValues(cache, "error").Inc()
	default:
		metrics.FetchesTotal.WithLabelValues(cache, "applied").Inc()
	}
}

// SetSearchQuery records raw search input. The active listing changes only
// after DebounceDelay without further search or filter input.
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.rawQuery = q
	s.mu.Unlock()

	s.sched.Schedule(viewTask, s.opts.DebounceDelay, s.commitView)
	s.emit(Event{Kind: EventView})
}

// SetFilters records raw filter input, debounced together with the search query.
func (s *Store) SetFilters(f FilterCriteria) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.rawFilters = f
	s.mu.Unlock()

	s.sched.Schedule(viewTask, s.opts.DebounceDelay, s.commitView)
	s.emit(Event{Kind: EventView})
	return nil
}

// FlushView commits pending search/filter input immediately.
func (s *Store) FlushView() {
	s.sched.Flush(viewTask)
}

// SearchQuery returns the raw, possibly uncommitted, search input.
func (s *Store) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawQuery
}

// Filters returns the raw, possibly uncommitted, filters.
func (s *Store) Filters() FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawFilters
}

// ActiveKey returns the committed listing key.
func (s *Store) ActiveKey() ListKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveListing returns the listing for the committed key.
func (s *Store) ActiveListing(ctx context.Context) (*filevault.FileListing, error) {
	return s.Listing(ctx, s.ActiveKey())
}

// commitView makes the latest raw input the active key and loads it.
func (s *Store) commitView() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next := ListKey{Query: s.rawQuery, Filters: s.rawFilters}.normalized()
	changed := next != s.active
	s.active = next
	s.mu.Unlock()

	metrics.DebounceCommitsTotal.Inc()
	s.log.Debug("view committed", "key", next.String(), "changed", changed)
	s.emit(Event{Kind: EventView, Key: next.String()})

	s.background(func(ctx context.Context) {
		if _, err := s.Listing(ctx, next); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("view fetch failed", "key", next.String(), "error", err)
		}
	})
}

// Invalidate marks every entry whose key starts with one of prefixes as
// stale and cancels its in-flight fetch. The active listing, the selected
// file's details and previously loaded statistics are refetched in the
// background. Other entries refetch on their next read.
func (s *Store) Invalidate(prefixes ...string) {
	jobs := s.markStale(prefixes...)
	if len(jobs) == 0 {
		return
	}
	s.background(func(ctx context.Context) {
		runRefetch(ctx, jobs)
	})
}

type refetchJob func(ctx context.Context) error

func runRefetch(ctx context.Context, jobs []refetchJob) {
	var g errgroup.Group
	for _, job := range jobs {
		job := job
		g.Go(func() error { return job(ctx) })
	}
	_ = g.Wait()
}

func matchesAny(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// markStale applies an invalidation and returns the refetches it requires.
func (s *Store) markStale(prefixes ...string) []refetchJob {
	var jobs []refetchJob

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	activeKey := s.active.String()
	for _, k := range s.listings.Keys() {
		if !matchesAny(k, prefixes) {
			continue
		}
		e, ok := s.listings.Peek(k)
		if !ok {
			continue
		}
		e.cancelInFlight()
		e.stale = true
		e.missed = false
		s.group.Forget(k)
		if k == activeKey {
			key := e.key
			jobs = append(jobs, func(ctx context.Context) error {
				_, err := s.Listing(ctx, key)
				return err
			})
		}
	}

	if d := s.detail; d != nil && matchesAny(detailKey(d.id), prefixes) {
		d.cancelInFlight()
		d.stale = true
		s.group.Forget(detailKey(d.id))
		jobs = append(jobs, func(ctx context.Context) error {
			_, err := s.Details(ctx)
			return err
		})
	}

	if st := s.stats; st != nil && matchesAny(KeyStats, prefixes) {
		st.cancelInFlight()
		st.stale = true
		s.group.Forget(KeyStats)
		jobs = append(jobs, func(ctx context.Context) error {
			_, err := s.StorageStats(ctx)
			return err
		})
	}
	s.mu.Unlock()

	for _, p := range prefixes {
		metrics.InvalidationsTotal.WithLabelValues(p).Inc()
	}
	s.log.Debug("invalidated", "prefixes", prefixes, "refetches", len(jobs))
	return jobs
}

// MetricsSnapshot reports cache occupancy and the cached statistics.
func (s *Store) MetricsSnapshot() metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := metrics.Snapshot{
		Listings:     s.listings.Len(),
		DetailCached: s.detail != nil && s.detail.ok,
	}
	for _, k := range s.listings.Keys() {
		if e, ok := s.listings.Peek(k); ok && e.stale {
			snap.StaleListings++
		}
	}
	if s.stats != nil && s.stats.ok {
		st := s.stats.data
		snap.StatsCached = true
		snap.TotalFiles = st.TotalFiles
		snap.UniqueFiles = st.UniqueFiles
		snap.TotalSize = st.TotalSize
		snap.ActualSize = st.ActualSize
		snap.SpaceSaved = st.SpaceSaved
		snap.PercentageSaved = st.PercentageSaved
	}
	return snap
}
