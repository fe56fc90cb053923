package alerts

import (
	"sort"
	"sync"
)

// BadSet tracks identifiers whose last evaluated event was WARN or ERROR.
// It lives only in process memory and starts empty on every restart.
type BadSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewBadSet returns an empty set.
func NewBadSet() *BadSet {
	return &BadSet{ids: make(map[string]struct{})}
}

func (s *BadSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *BadSet) Remove(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *BadSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Snapshot returns the current members in sorted order.
func (s *BadSet) Snapshot() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
