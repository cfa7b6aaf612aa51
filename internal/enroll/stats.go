package enroll

import "sync"

// Stats tracks the run-wide success and failure counters. Skipped results
// touch neither counter. Pipelines for different users increment
// concurrently, so updates hold the lock.
type Stats struct {
	mu           sync.Mutex
	successCount int
	failureCount int
}

// AddSuccesses adds n to the success counter.
func (s *Stats) AddSuccesses(n int) {
	s.mu.Lock()
	s.successCount += n
	s.mu.Unlock()
}

// AddFailures adds n to the failure counter.
func (s *Stats) AddFailures(n int) {
	s.mu.Lock()
	s.failureCount += n
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() (success, failure int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successCount, s.failureCount
}
