// Package memstore defines the memory-store contract the sync pipeline
// delivers completed conversation turns to.
//
// The store is an external collaborator: its unavailability degrades only
// persistence, never the live voice session. Two backends ship with voxtale —
// an HTTP client for a memobase-style memory service ([HTTPStore]) and a
// PostgreSQL store ([postgres.Store]) — plus an in-memory mock for tests.
//
// All implementations must be safe for concurrent use.
package memstore

import "context"

// Message is one role-attributed utterance of a conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the abstraction over any memory backend.
type Store interface {
	// Ping reports whether the store is reachable and healthy.
	Ping(ctx context.Context) error

	// GetOrCreateUser ensures a user record exists for id, creating it when
	// the store reports it missing.
	GetOrCreateUser(ctx context.Context, id string) error

	// Insert stores one completed turn (an ordered list of messages) for the
	// user. Insert alone may buffer server-side; pair with Flush to force
	// processing.
	Insert(ctx context.Context, userID string, messages []Message) error

	// Flush forces the store to process buffered inserts for the user. When
	// blocking is true the call returns only after processing completes.
	Flush(ctx context.Context, userID string, blocking bool) error
}
