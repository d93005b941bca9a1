package testutils

import (
	"context"
	"sync"

	"github.com/evdnx/voltrail/config"
)

// MockStore is an in-memory configuration store. Snapshots are served in
// order; the last one repeats once the queue is drained.
type MockStore struct {
	mu sync.Mutex

	Snapshots []config.Snapshot
	ConfigErr error
	Blacklist map[string]struct{}
	BlackErr  error
	AppendErr error
	// FailAppends makes the next N appends fail with ErrMock.
	FailAppends int

	statuses []string
	lines    []string
	clears   int
	reads    int
	appends  int
}

func NewMockStore(snaps ...config.Snapshot) *MockStore {
	return &MockStore{Snapshots: snaps, Blacklist: map[string]struct{}{}}
}

func (s *MockStore) ReadConfig(context.Context) (config.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.ConfigErr != nil {
		return config.Snapshot{}, s.ConfigErr
	}
	if len(s.Snapshots) == 0 {
		return config.Snapshot{}, ErrMock
	}
	snap := s.Snapshots[0]
	if len(s.Snapshots) > 1 {
		s.Snapshots = s.Snapshots[1:]
	}
	return snap, nil
}

func (s *MockStore) ReadBlacklist(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BlackErr != nil {
		return nil, s.BlackErr
	}
	out := make(map[string]struct{}, len(s.Blacklist))
	for k := range s.Blacklist {
		out[k] = struct{}{}
	}
	return out, nil
}

func (s *MockStore) SetStatus(_ context.Context, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *MockStore) AppendLog(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.FailAppends > 0 {
		s.FailAppends--
		return ErrMock
	}
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *MockStore) ClearLog(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.lines = nil
	return nil
}

// Statuses returns every status written, in order.
func (s *MockStore) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

// Lines returns the log lines written since the last clear.
func (s *MockStore) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Reads returns how many times the config was read.
func (s *MockStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Appends returns how many append attempts were made.
func (s *MockStore) Appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

// Clears returns how many times the log was cleared.
func (s *MockStore) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}
