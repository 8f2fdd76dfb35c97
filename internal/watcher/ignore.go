package watcher

import "sync"

// IgnoreSet holds the paths a flush pass is currently writing. Changes to
// them are the pass's own and are not coalesced. Adds are counted, so a path
// added twice stays ignored until removed twice.
type IgnoreSet struct {
	mu    sync.Mutex
	paths map[string]int
}

// NewIgnoreSet creates an empty set.
func NewIgnoreSet() *IgnoreSet {
	return &IgnoreSet{paths: make(map[string]int)}
}

// Add ignores each path once more.
func (s *IgnoreSet) Add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.paths[p]++
	}
}

// Remove releases one Add of each path.
func (s *IgnoreSet) Remove(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		switch n := s.paths[p]; {
		case n > 1:
			s.paths[p] = n - 1
		case n == 1:
			delete(s.paths, p)
		}
	}
}

// Contains reports whether path is ignored.
func (s *IgnoreSet) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths[path] > 0
}

// Len returns the number of distinct ignored paths.
func (s *IgnoreSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
