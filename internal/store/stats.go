package store

import (
	"context"
	"errors"
	"time"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/metrics"
)

// StorageStats returns the server's deduplication statistics, cached for
// StatsStaleTime and invalidated by every mutation.
func (s *Store) StorageStats(ctx context.Context) (*filevault.StorageStats, error) {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if s.stats == nil {
			s.stats = &entry[*filevault.StorageStats]{}
		}
		if s.stats.fresh(time.Now(), s.opts.StatsStaleTime) {
			data := s.stats.data
			s.mu.Unlock()
			metrics.CacheLookupsTotal.WithLabelValues("stats", "hit").Inc()
			return data, nil
		}
		s.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("stats", "miss").Inc()

		data, err := await[*filevault.StorageStats](ctx, s.group.DoChan(KeyStats, s.shared(func() (interface{}, error) {
			return s.fetchStats()
		})))
		if errors.Is(err, ErrSuperseded) && attempt == 0 {
			continue
		}
		return data, err
	}
}

// StatsState returns the cached statistics without fetching.
func (s *Store) StatsState() State[*filevault.StorageStats] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.state()
}

func (s *Store) fetchStats() (*filevault.StorageStats, error) {
	s.mu.Lock()
	e := s.stats
	ctx, gen := e.begin(s.ctx)
	s.mu.Unlock()
	s.emit(Event{Kind: EventStats, Key: KeyStats})

	data, err := withRetry(ctx, s.opts.StatsRetries, s.opts.RetryInterval, s.api.GetStorageStats)
	if err == nil && !data.Consistent() {
		s.log.Warn("storage statistics are inconsistent",
			"total_files", data.TotalFiles,
			"unique_files", data.UniqueFiles,
			"duplicate_files", data.DuplicateFiles,
			"space_saved", data.SpaceSaved)
	}

	s.mu.Lock()
	applied := e.finish(gen, data, err, time.Now())
	result, resultErr := e.settle(applied, data, err)
	s.mu.Unlock()

	recordFetch("stats", applied, err)
	if err != nil && applied {
		s.log.Warn("storage statistics fetch failed", "error", err)
	}
	s.emit(Event{Kind: EventStats, Key: KeyStats})

	return result, resultErr
}
