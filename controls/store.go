package controls

import (
	"math"
	"sync"
	"time"
)

// Store owns the canonical snapshot. All access goes through Merge and
// Current; the underlying value is never shared by reference, so a reader can
// never observe a half-applied mutation.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the timestamp source. Test seam.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store holding DefaultSnapshot, stamped with the creation
// time so the initial sync event already carries a timestamp.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		snap: DefaultSnapshot(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.snap.Timestamp = s.now().UTC()
	return s
}

// Current returns the canonical snapshot without side effects.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Merge applies a field-wise overlay of m onto the canonical snapshot and
// returns the result. Enumerated fields (region, scenario, theme) are checked
// against their closed sets and dropped when invalid; year and variant are
// trust-the-caller. The merge is atomic and stamps a fresh timestamp.
//
// Conflict policy is last-write-wins per field: the most recent Merge call to
// acquire the lock overwrites, with no causal ordering.
func (s *Store) Merge(m Mutation) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap

	if m.Filters != nil {
		if m.Filters.Region != nil && ValidRegion(*m.Filters.Region) {
			next.Filters.Region = *m.Filters.Region
		}
		if m.Filters.Year != nil {
			next.Filters.Year = *m.Filters.Year
		}
		if m.Filters.Scenario != nil && ValidScenario(*m.Filters.Scenario) {
			next.Filters.Scenario = *m.Filters.Scenario
		}
	}
	if m.Variant != nil && !math.IsNaN(*m.Variant) && !math.IsInf(*m.Variant, 0) {
		next.Variant = int64(*m.Variant)
	}
	if m.Theme != nil && ValidTheme(*m.Theme) {
		next.Theme = *m.Theme
	}

	next.Timestamp = s.now().UTC()
	s.snap = next
	return next
}
