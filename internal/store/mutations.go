package store

import (
	"context"
	"io"
	"os"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/metrics"
)

// snapshot is one listing entry as it was before an optimistic delete.
type snapshot struct {
	entry   *listingEntry
	data    *filevault.FileListing
	ok      bool
	err     error
	patched *filevault.FileListing
}

// Delete removes a file. Every cached listing drops the record immediately;
// if the server rejects the delete, each listing this call patched is
// restored exactly as it was. A 404 means someone else already deleted the
// file and counts as success. On success the listings and statistics are
// invalidated and reconciled in the background.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	snaps := s.applyDeleteLocked(id)
	s.mu.Unlock()

	s.log.Debug("delete applied optimistically", "file_id", id, "listings", len(snaps))
	s.emit(Event{Kind: EventMutation, Operation: "delete", FileID: id, State: MutationApplied})
	s.emit(Event{Kind: EventListing})

	err := s.api.DeleteFile(ctx, id)
	notFound := filevault.IsNotFound(err)

	if err != nil && !notFound {
		s.mu.Lock()
		restored, resync := s.rollbackLocked(snaps)
		s.mu.Unlock()

		metrics.MutationsTotal.WithLabelValues("delete", MutationRolledBack.String()).Inc()
		s.log.Warn("delete failed, rolled back", "file_id", id, "restored", restored, "resync", resync, "error", err)
		s.emit(Event{Kind: EventListing})
		s.emit(Event{Kind: EventMutation, Operation: "delete", FileID: id, State: MutationRolledBack, Err: err})
		if resync > 0 {
			s.Invalidate(PrefixListings)
		}
		return err
	}

	s.mu.Lock()
	for _, snap := range snaps {
		snap.entry.optimistic--
	}
	detailEvicted := s.evictDetailLocked(id)
	s.mu.Unlock()

	if notFound {
		s.log.Info("file already deleted", "file_id", id)
	} else {
		s.log.Info("file deleted", "file_id", id)
	}
	if detailEvicted {
		s.emit(Event{Kind: EventDetails, FileID: id})
	}

	metrics.MutationsTotal.WithLabelValues("delete", MutationSettled.String()).Inc()
	s.settle("delete", id)
	return nil
}

// applyDeleteLocked removes id from every cached listing after cutting off
// their in-flight fetches, and returns the pre-delete snapshots.
func (s *Store) applyDeleteLocked(id string) []snapshot {
	var snaps []snapshot
	for _, k := range s.listings.Keys() {
		e, ok := s.listings.Peek(k)
		if !ok {
			continue
		}
		e.cancelInFlight()
		s.group.Forget(k)
		e.optimistic++

		snap := snapshot{entry: e, data: e.data, ok: e.ok, err: e.err}
		if next, removed := e.data.Without(id); removed {
			e.data = next
		}
		snap.patched = e.data
		snaps = append(snaps, snap)
	}
	return snaps
}

// rollbackLocked restores snapshots and reports how many listings were
// restored and how many need a refetch. A listing that changed again since
// this delete patched it cannot be restored, and neither can one whose
// reconciling fetch was dropped while this delete was pending.
func (s *Store) rollbackLocked(snaps []snapshot) (restored, resync int) {
	for _, snap := range snaps {
		e := snap.entry
		e.optimistic--
		if e.data == snap.patched {
			e.data = snap.data
			e.ok = snap.ok
			e.err = snap.err
			restored++
		} else {
			e.stale = true
			e.missed = true
		}
		if e.optimistic == 0 && e.missed {
			resync++
		}
	}
	return restored, resync
}

// evictDetailLocked drops the detail entry and selection for a deleted file.
func (s *Store) evictDetailLocked(id string) bool {
	if s.detail == nil || s.detail.id != id {
		return false
	}
	s.detail.cancelInFlight()
	s.group.Forget(detailKey(id))
	s.detail = nil
	s.selectedID = ""
	return true
}

// settle publishes a confirmed mutation, then invalidates listings and
// statistics and reconciles them in the background.
func (s *Store) settle(op, id string) {
	s.emit(Event{Kind: EventMutation, Operation: op, FileID: id, State: MutationSettled})

	jobs := s.markStale(PrefixListings, KeyStats)
	if len(jobs) == 0 {
		return
	}
	s.background(func(ctx context.Context) {
		s.emit(Event{Kind: EventMutation, Operation: op, FileID: id, State: MutationReconciling})
		runRefetch(ctx, jobs)
		s.emit(Event{Kind: EventMutation, Operation: op, FileID: id, State: MutationSettled})
	})
}

// Upload stores content under filename. Listings are never patched
// optimistically, not even for a deduplicated reference; a successful upload
// invalidates listings and statistics instead. A 409 conflict is returned
// unchanged so callers can explain it with APIError.ConflictMessage.
func (s *Store) Upload(ctx context.Context, filename string, r io.Reader, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.emit(Event{Kind: EventMutation, Operation: "upload", FileID: filename, State: MutationPending})

	result, err := s.api.Upload(ctx, filename, r, opts)
	if err != nil {
		return nil, s.uploadFailed(filename, err)
	}

	if opts != nil && opts.Size > 0 {
		metrics.UploadSizeBytes.Observe(float64(opts.Size))
	}
	return s.uploadDone(filename, result), nil
}

// UploadFile uploads the file at path. See Upload.
func (s *Store) UploadFile(ctx context.Context, path string, opts *filevault.UploadOptions) (*filevault.UploadResult, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.emit(Event{Kind: EventMutation, Operation: "upload", FileID: path, State: MutationPending})

	result, err := s.api.UploadFile(ctx, path, opts)
	if err != nil {
		return nil, s.uploadFailed(path, err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		metrics.UploadSizeBytes.Observe(float64(info.Size()))
	}
	return s.uploadDone(path, result), nil
}

func (s *Store) uploadFailed(name string, err error) error {
	metrics.MutationsTotal.WithLabelValues("upload", MutationFailed.String()).Inc()
	s.log.Warn("upload failed", "name", name, "status", filevault.StatusCode(err), "error", err)
	s.emit(Event{Kind: EventMutation, Operation: "upload", FileID: name, State: MutationFailed, Err: err})
	return err
}

func (s *Store) uploadDone(name string, result *filevault.UploadResult) *filevault.UploadResult {
	metrics.MutationsTotal.WithLabelValues("upload", MutationSettled.String()).Inc()
	s.log.Info("file uploaded", "name", name, "file_id", result.ID, "is_reference", result.IsReference)
	s.settle("upload", result.ID)
	return result
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
