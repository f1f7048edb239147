package store

import (
	"context"
	"time"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/metrics"
)

// Select changes the file whose details are shown. The previous selection's
// entry is evicted and its in-flight fetch cancelled; an empty id clears the
// selection. Nothing is fetched until Details is called.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.closed || id == s.selectedID {
		s.mu.Unlock()
		return
	}
	if prev := s.detail; prev != nil {
		prev.cancelInFlight()
		s.group.Forget(detailKey(prev.id))
	}
	s.detail = nil
	s.selectedID = id
	if id != "" {
		s.detail = &detailEntry{id: id}
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventDetails, FileID: id})
}

// Selected returns the selected file ID, or "" when nothing is selected.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Details returns the selected file's metadata. It returns nil, nil when
// nothing is selected, and ErrSuperseded if the selection changed while the
// fetch was in flight. A 404 is returned without retrying.
func (s *Store) Details(ctx context.Context) (*filevault.FileRecord, error) {
	s.mu.Lock()
	e := s.detail
	if e == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if e.fresh(time.Now(), s.opts.ListStaleTime) {
		data := e.data
		s.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("details", "hit").Inc()
		return data, nil
	}
	s.mu.Unlock()
	metrics.CacheLookupsTotal.WithLabelValues("details", "miss").Inc()

	return await[*filevault.FileRecord](ctx, s.group.DoChan(detailKey(e.id), s.shared(func() (interface{}, error) {
		return s.fetchDetails(e)
	})))
}

// DetailsState returns the selected ID and its cached state without fetching.
func (s *Store) DetailsState() (string, State[*filevault.FileRecord]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return s.selectedID, State[*filevault.FileRecord]{}
	}
	return s.selectedID, s.detail.state()
}

func (s *Store) fetchDetails(e *detailEntry) (*filevault.FileRecord, error) {
	s.mu.Lock()
	if s.detail != e {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	ctx, gen := e.begin(s.ctx)
	s.mu.Unlock()
	s.emit(Event{Kind: EventDetails, Key: detailKey(e.id), FileID: e.id})

	s.log.Debug("fetching details", "file_id", e.id, "generation", gen)
	data, err := withRetry(ctx, s.opts.DetailRetries, s.opts.RetryInterval, func(ctx context.Context) (*filevault.FileRecord, error) {
		return s.api.GetFileDetails(ctx, e.id)
	})

	s.mu.Lock()
	if s.detail != e {
		s.mu.Unlock()
		recordFetch("details", false, err)
		s.log.Debug("details response for superseded selection discarded", "file_id", e.id)
		return nil, ErrSuperseded
	}
	applied := e.finish(gen, data, err, time.Now())
	result, resultErr := e.settle(applied, data, err)
	s.mu.Unlock()

	recordFetch("details", applied, err)
	if err != nil && applied && !filevault.IsNotFound(err) {
		s.log.Warn("details fetch failed", "file_id", e.id, "error", err)
	}
	s.emit(Event{Kind: EventDetails, Key: detailKey(e.id), FileID: e.id})

	return result, resultErr
}
