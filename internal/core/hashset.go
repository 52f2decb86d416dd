package core

import "sync"

// HashSet tracks the content digests of every attachment known to the
// workspace. It is rebuilt from the index at the start of each sync pass and
// grows as new downloads are accepted, so duplicates within a single run are
// caught as well as duplicates against prior runs.
//
// Membership checks and inserts share one mutex: if two downloads of
// identical content ran concurrently, both could otherwise observe "not a
// duplicate" before either inserts its digest.
type HashSet struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

// NewHashSet creates a HashSet seeded with the given digests.
func NewHashSet(seed ...string) *HashSet {
	s := &HashSet{hashes: make(map[string]struct{}, len(seed))}
	for _, h := range seed {
		s.hashes[h] = struct{}{}
	}
	return s
}

// Contains reports whether hash is in the set.
func (s *HashSet) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hashes[hash]
	return ok
}

// Add inserts hash into the set.
func (s *HashSet) Add(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = struct{}{}
}

// Len returns the number of digests in the set.
func (s *HashSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}
