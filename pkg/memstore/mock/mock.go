// Package mock provides an in-memory mock implementation of the
// [memstore.Store] interface for unit tests.
//
// The mock can be scripted to fail a fixed number of Insert calls before
// succeeding (FailInserts), or to fail every call (InsertError), which is how
// the dispatcher retry paths are exercised.
package mock

import (
	"context"
	"sync"

	"github.com/voxtale/voxtale/pkg/memstore"
)

// InsertCall records the arguments of one Insert invocation.
type InsertCall struct {
	UserID   string
	Messages []memstore.Message
}

// Store is a mock [memstore.Store]. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// PingError is returned by Ping.
	PingError error

	// UserError is returned by GetOrCreateUser.
	UserError error

	// InsertError, when non-nil, is returned by every Insert call.
	InsertError error

	// FailInserts makes the first N Insert calls fail with InsertError (or a
	// generic error if InsertError is nil), after which inserts succeed.
	// Ignored when zero.
	FailInserts int

	// FlushError is returned by Flush.
	FlushError error

	// InsertCalls records every Insert invocation, including failed ones.
	InsertCalls []InsertCall

	// FlushCalls records the userID of every Flush invocation.
	FlushCalls []string

	// Users records ids passed to GetOrCreateUser.
	Users []string

	failed int
}

var _ memstore.Store = (*Store)(nil)

type scriptedError struct{}

func (scriptedError) Error() string { return "mock store: scripted insert failure" }

// Ping implements [memstore.Store].
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingError
}

// GetOrCreateUser implements [memstore.Store].
func (s *Store) GetOrCreateUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UserError != nil {
		return s.UserError
	}
	s.Users = append(s.Users, id)
	return nil
}

// Insert implements [memstore.Store].
func (s *Store) Insert(ctx context.Context, userID string, messages []memstore.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls = append(s.InsertCalls, InsertCall{UserID: userID, Messages: messages})

	if s.InsertError != nil && s.FailInserts == 0 {
		return s.InsertError
	}
	if s.failed < s.FailInserts {
		s.failed++
		if s.InsertError != nil {
			return s.InsertError
		}
		return scriptedError{}
	}
	return nil
}

// Flush implements [memstore.Store].
func (s *Store) Flush(ctx context.Context, userID string, blocking bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FlushError != nil {
		return s.FlushError
	}
	s.FlushCalls = append(s.FlushCalls, userID)
	return nil
}

// InsertCount returns the number of Insert calls made so far.
func (s *Store) InsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.InsertCalls)
}
