package requestlog

import "time"

// HistoryCap is the maximum number of entries a history query returns to
// a viewer, and the bound a viewer client keeps buffered.
const HistoryCap = 100

// Query bounds a List call. Results are always newest-first.
type Query struct {
	// EndpointID filters to one endpoint; empty means all endpoints,
	// including entries that matched none.
	EndpointID string

	// Limit caps the result size; <= 0 means no explicit cap.
	Limit int

	// BeforeID restricts results to entries with ids strictly smaller
	// (older) than the given id. Used for pagination.
	BeforeID string
}

// Logger is the minimal sink for new entries. The actor hands it every
// request; implementations must make the entry visible to a subsequent
// List before Append returns.
type Logger interface {
	Append(entry *Entry) error
}

// Store is the full request history contract.
type Store interface {
	Logger

	// List returns entries newest-first, bounded by q.
	List(q Query) ([]*Entry, error)

	// Clear irreversibly removes all entries for the tenant.
	Clear() error

	// Prune removes entries older than the cutoff. It is advisory
	// housekeeping for the tier's retention window and returns the
	// number of entries removed.
	Prune(olderThan time.Time) (int, error)

	// Count returns the number of stored entries.
	Count() (int, error)
}
