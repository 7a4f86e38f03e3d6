package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Memory is an in-process Manager used by tests and local development. It
// mimics the document backend: identities are `table:n` things under "_id"
// and timestamps are stamped on every write.
type Memory struct {
	mu   sync.Mutex
	seq  int
	data map[Kind][]Record
	now  func() time.Time
}

// NewMemory returns an empty in-memory manager.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[Kind][]Record),
		now:  time.Now,
	}
}

// Connect is a no-op.
func (m *Memory) Connect(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Save inserts or replaces a record depending on identity presence.
func (m *Memory) Save(ctx context.Context, kind Kind, rec Record) (Record, error) {
	table, ok := collections[kind]
	if !ok {
		return nil, unknownKind(kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := rec.Clone()
	delete(stored, "id")
	now := m.now().UTC()
	stored["updatedAt"] = now

	if id := rec.ID(); id != "" {
		stored["_id"] = id
		for i, existing := range m.data[kind] {
			if existing.ID() == id {
				if _, ok := stored["createdAt"]; !ok {
					stored["createdAt"] = existing["createdAt"]
				}
				m.data[kind][i] = stored
				return stored.Clone(), nil
			}
		}
		return nil, ErrNotFound
	}

	m.seq++
	stored["_id"] = fmt.Sprintf("%s:%d", table, m.seq)
	stored["createdAt"] = now
	m.data[kind] = append(m.data[kind], stored)
	return stored.Clone(), nil
}

// ReadOneByID returns the record with the given identity.
func (m *Memory) ReadOneByID(ctx context.Context, kind Kind, id string) (Record, error) {
	if _, ok := collections[kind]; !ok {
		return nil, unknownKind(kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.data[kind] {
		if rec.ID() == id {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// ReadOne returns the first record matching the criteria.
func (m *Memory) ReadOne(ctx context.Context, kind Kind, criteria Criteria) (Record, error) {
	records, err := m.ReadAll(ctx, kind, criteria)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// ReadAll returns every matching record in creation order.
func (m *Memory) ReadAll(ctx context.Context, kind Kind, criteria Criteria) ([]Record, error) {
	if _, ok := collections[kind]; !ok {
		return nil, unknownKind(kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]Record, 0)
	for _, rec := range m.data[kind] {
		if matchesCriteria(rec, criteria) {
			matches = append(matches, rec.Clone())
		}
	}
	return matches, nil
}

// DeleteByID removes the record with the given identity.
func (m *Memory) DeleteByID(ctx context.Context, kind Kind, id string) error {
	if _, ok := collections[kind]; !ok {
		return unknownKind(kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rec := range m.data[kind] {
		if rec.ID() == id {
			m.data[kind] = append(m.data[kind][:i], m.data[kind][i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Delete removes the first record matching the criteria.
func (m *Memory) Delete(ctx context.Context, kind Kind, criteria Criteria) error {
	rec, err := m.ReadOne(ctx, kind, criteria)
	if err != nil {
		return err
	}
	return m.DeleteByID(ctx, kind, rec.ID())
}

func matchesCriteria(rec Record, criteria Criteria) bool {
	for field, want := range criteria {
		if !reflect.DeepEqual(rec[field], want) {
			return false
		}
	}
	return true
}
