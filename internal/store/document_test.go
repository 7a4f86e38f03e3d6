package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealdb "github.com/surrealdb/surrealdb.go"
)

// fakeSurreal scripts the handful of client calls the document backend makes.
type fakeSurreal struct {
	createRes any
	createErr error
	updateRes any
	updateErr error
	selectRes any
	selectErr error
	queryRes  any
	queryErr  error
	deleteErr error

	createdTable string
	createdData  map[string]any
	updatedThing string
	updatedData  map[string]any
	queriedSQL   string
	queriedVars  map[string]any
	deletedThing string
	closed       bool
}

func (f *fakeSurreal) Use(ns, db string) (any, error) { return nil, nil }
func (f *fakeSurreal) Signin(vars map[string]any) (any, error) {
	return nil, nil
}
func (f *fakeSurreal) Create(thing string, data map[string]any) (any, error) {
	f.createdTable, f.createdData = thing, data
	return f.createRes, f.createErr
}
func (f *fakeSurreal) Update(what string, data map[string]any) (any, error) {
	f.updatedThing, f.updatedData = what, data
	return f.updateRes, f.updateErr
}
func (f *fakeSurreal) Query(sql string, vars map[string]any) (any, error) {
	f.queriedSQL, f.queriedVars = sql, vars
	return f.queryRes, f.queryErr
}
func (f *fakeSurreal) Select(what string) (any, error) { return f.selectRes, f.selectErr }
func (f *fakeSurreal) Delete(what string) (any, error) {
	f.deletedThing = what
	return nil, f.deleteErr
}
func (f *fakeSurreal) Close() { f.closed = true }

func newFakeSurreal(conn *fakeSurreal) *Surreal {
	return &Surreal{
		conn: conn,
		now:  func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSurrealSaveCreatesWithoutIdentity(t *testing.T) {
	conn := &fakeSurreal{
		createRes: []any{map[string]any{
			"id": "playlist:abc", "name": "P1", "ownerEmail": "a@x.com", "songs": []any{},
		}},
	}
	m := newFakeSurreal(conn)

	rec, err := m.Save(context.Background(), KindPlaylist, Record{
		"name": "P1", "ownerEmail": "a@x.com", "songs": []any{},
	})
	require.NoError(t, err)

	assert.Equal(t, "playlist", conn.createdTable)
	assert.Equal(t, "playlist:abc", rec.ID())
	assert.NotContains(t, rec, "id", "document identity must be exposed as _id")

	// Both timestamps are stamped by the backend on a fresh write.
	assert.Equal(t, m.now(), conn.createdData["createdAt"])
	assert.Equal(t, m.now(), conn.createdData["updatedAt"])
}

func TestSurrealSaveReplacesWithIdentity(t *testing.T) {
	conn := &fakeSurreal{
		updateRes: map[string]any{
			"id": "playlist:abc", "name": "New", "ownerEmail": "a@x.com", "songs": []any{},
		},
	}
	m := newFakeSurreal(conn)

	rec, err := m.Save(context.Background(), KindPlaylist, Record{
		"_id": "playlist:abc", "name": "New", "ownerEmail": "a@x.com", "songs": []any{},
	})
	require.NoError(t, err)

	assert.Equal(t, "playlist:abc", conn.updatedThing)
	assert.NotContains(t, conn.updatedData, "_id", "identity must not be written as content")
	assert.Equal(t, "New", rec["name"])
}

func TestSurrealSaveRejectsForeignIdentity(t *testing.T) {
	m := newFakeSurreal(&fakeSurreal{})

	_, err := m.Save(context.Background(), KindPlaylist, Record{"_id": "user:abc", "name": "X"})
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestSurrealReadOneByID(t *testing.T) {
	conn := &fakeSurreal{
		selectRes: map[string]any{"id": "user:1", "email": "a@x.com"},
	}
	m := newFakeSurreal(conn)

	rec, err := m.ReadOneByID(context.Background(), KindUser, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "user:1", rec.ID())
	assert.Equal(t, "a@x.com", rec["email"])
}

func TestSurrealReadOneByIDAbsent(t *testing.T) {
	conn := &fakeSurreal{selectErr: surrealdb.PermissionError{}}
	m := newFakeSurreal(conn)

	_, err := m.ReadOneByID(context.Background(), KindUser, "user:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSurrealReadOneByIDMalformed(t *testing.T) {
	m := newFakeSurreal(&fakeSurreal{})

	_, err := m.ReadOneByID(context.Background(), KindUser, "not-a-thing")
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestSurrealReadAllBuildsCriteriaQuery(t *testing.T) {
	conn := &fakeSurreal{
		queryRes: []any{map[string]any{
			"status": "OK",
			"result": []any{
				map[string]any{"id": "playlist:1", "name": "P1", "ownerEmail": "a@x.com"},
				map[string]any{"id": "playlist:2", "name": "P2", "ownerEmail": "a@x.com"},
			},
		}},
	}
	m := newFakeSurreal(conn)

	records, err := m.ReadAll(context.Background(), KindPlaylist, Criteria{"ownerEmail": "a@x.com"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "playlist:1", records[0].ID())

	assert.Contains(t, conn.queriedSQL, "type::table($tb)")
	assert.Contains(t, conn.queriedSQL, "ownerEmail = $w0")
	assert.Contains(t, conn.queriedSQL, "ORDER BY createdAt ASC, id ASC")
	assert.Equal(t, "playlist", conn.queriedVars["tb"])
	assert.Equal(t, "a@x.com", conn.queriedVars["w0"])
}

func TestSurrealReadAllNoMatchesIsEmpty(t *testing.T) {
	conn := &fakeSurreal{
		queryRes: []any{map[string]any{"status": "OK", "result": []any{}}},
	}
	m := newFakeSurreal(conn)

	records, err := m.ReadAll(context.Background(), KindPlaylist, Criteria{"ownerEmail": "nobody@x.com"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSurrealDeleteByIDAbsent(t *testing.T) {
	conn := &fakeSurreal{selectErr: surrealdb.PermissionError{}}
	m := newFakeSurreal(conn)

	err := m.DeleteByID(context.Background(), KindPlaylist, "playlist:missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, conn.deletedThing, "delete must not run when the lookup misses")
}

func TestSurrealDeleteByID(t *testing.T) {
	conn := &fakeSurreal{
		selectRes: map[string]any{"id": "playlist:abc", "name": "P1"},
	}
	m := newFakeSurreal(conn)

	err := m.DeleteByID(context.Background(), KindPlaylist, "playlist:abc")
	require.NoError(t, err)
	assert.Equal(t, "playlist:abc", conn.deletedThing)
}

func TestSurrealConnectIsIdempotent(t *testing.T) {
	conn := &fakeSurreal{}
	m := newFakeSurreal(conn)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))
}

func TestSurrealUpsertIdempotence(t *testing.T) {
	res := map[string]any{"id": "playlist:abc", "name": "Same", "ownerEmail": "a@x.com", "songs": []any{}}
	conn := &fakeSurreal{updateRes: res}
	m := newFakeSurreal(conn)

	in := Record{"_id": "playlist:abc", "name": "Same", "ownerEmail": "a@x.com", "songs": []any{}}
	first, err := m.Save(context.Background(), KindPlaylist, in)
	require.NoError(t, err)
	second, err := m.Save(context.Background(), KindPlaylist, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
