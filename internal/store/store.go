// Package store is the persistence layer. It defines a backend-agnostic
// Manager contract together with two implementations, one backed by
// SurrealDB (document-oriented) and one backed by Postgres (relational).
// Calling code selects a backend once at startup and never branches on the
// choice again.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrMalformedID signals an identity value the backend cannot parse.
	ErrMalformedID = errors.New("malformed record id")
	// ErrUnknownKind signals a resource kind the backend has no schema for.
	ErrUnknownKind = errors.New("unknown resource kind")
)

// Kind selects which resource schema an operation targets. Backends own the
// mapping from a Kind to their table or collection naming.
type Kind string

const (
	// KindUser targets the user resource.
	KindUser Kind = "user"
	// KindPlaylist targets the playlist resource.
	KindPlaylist Kind = "playlist"
)

// Criteria is an equality filter mapping canonical field names to required
// values. An empty Criteria matches every record of a kind.
type Criteria map[string]any

// Record is a single stored object in canonical field naming. The opaque
// identity is carried under "_id" by the document backend and "id" by the
// relational backend; use ID to read it without caring which.
type Record map[string]any

// ID returns the record identity regardless of backend naming, or "" when
// the record carries none.
func (r Record) ID() string {
	for _, key := range []string{"_id", "id"} {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Manager is the uniform persistence contract every backend implements.
//
// Save upserts keyed on identity presence: a record without an identity is
// inserted and returned with a freshly assigned one; a record with an
// identity replaces the stored fields wholesale. Deleting a record that does
// not exist is an error, not a no-op. No operation retries; a failed store
// call is reported upward immediately.
type Manager interface {
	// Connect establishes the backend connection. It is idempotent when
	// already connected and fails when the connection configuration is
	// malformed.
	Connect(ctx context.Context) error

	// Save inserts or replaces a record depending on identity presence and
	// returns the stored state.
	Save(ctx context.Context, kind Kind, rec Record) (Record, error)

	// ReadOneByID returns the record with the given identity, or
	// ErrNotFound. It errors for a malformed id shape, never for absence.
	ReadOneByID(ctx context.Context, kind Kind, id string) (Record, error)

	// ReadOne returns the first record matching the criteria, or ErrNotFound.
	ReadOne(ctx context.Context, kind Kind, criteria Criteria) (Record, error)

	// ReadAll returns every record matching the criteria, ordered by
	// creation time then identity. Empty criteria returns the whole kind.
	// No matches is an empty slice, not an error.
	ReadAll(ctx context.Context, kind Kind, criteria Criteria) ([]Record, error)

	// DeleteByID removes the record with the given identity. ErrNotFound
	// when no such record exists.
	DeleteByID(ctx context.Context, kind Kind, id string) error

	// Delete removes the first record matching the criteria. ErrNotFound
	// when nothing matches.
	Delete(ctx context.Context, kind Kind, criteria Criteria) error

	// Close releases the backend connection.
	Close() error
}

func unknownKind(kind Kind) error {
	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
