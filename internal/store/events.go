package store

// EventKind identifies what changed in the store.
type EventKind int

const (
	// EventListing fires when a listing entry changes (data, error or fetching flag).
	EventListing EventKind = iota
	// EventDetails fires when the selection or the detail entry changes.
	EventDetails
	// EventStats fires when the storage statistics entry changes.
	EventStats
	// EventView fires when the raw or committed search/filter state changes.
	EventView
	// EventMutation fires on every mutation state transition.
	EventMutation
)

func (k EventKind) String() string {
	switch k {
	case EventListing:
		return "listing"
	case EventDetails:
		return "details"
	case EventStats:
		return "stats"
	case EventView:
		return "view"
	case EventMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// MutationState is the lifecycle of one delete or upload.
//
// Delete: Applied, then Settled or RolledBack. A settled mutation moves to
// Reconciling while dependent caches refetch and back to Settled when they
// are done. Upload has no optimistic step: Pending, then Settled or Failed.
type MutationState int

const (
	MutationPending MutationState = iota
	MutationApplied
	MutationSettled
	MutationRolledBack
	MutationFailed
	MutationReconciling
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationApplied:
		return "applied"
	case MutationSettled:
		return "settled"
	case MutationRolledBack:
		return "rolled_back"
	case MutationFailed:
		return "failed"
	case MutationReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// Event describes a change. Listeners run synchronously on the goroutine
// that made the change and must not block for long.
type Event struct {
	Kind EventKind
	// Key is the cache key for listing and detail events.
	Key string
	// FileID is the target of a mutation or the selected file.
	FileID string
	// Operation is "delete" or "upload" for mutation events.
	Operation string
	// State is the mutation state for mutation events.
	State MutationState
	// Err is the failure for RolledBack and Failed mutations.
	Err error
}

// Subscribe registers fn for every future event and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) emit(ev Event) {
	s.listenerMu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
