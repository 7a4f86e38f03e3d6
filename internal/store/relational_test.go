package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	playlistColumns = "id, name, owner_email, songs, created_at, updated_at"
	userColumns     = "id, first_name, last_name, email, password_hash, created_at, updated_at"
)

// Postgres array literal holding one JSON-encoded song.
const oneSongArray = `{"{\"title\":\"Xtal\",\"artist\":\"Aphex Twin\",\"year\":1992,\"youTubeId\":\"abc\"}"}`

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Postgres{db: db}, mock
}

func playlistRow(id int64, name, owner, songs string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "owner_email", "songs", "created_at", "updated_at"}).
		AddRow(id, name, owner, songs, now, now)
}

func TestSaveInsertsWithoutIdentity(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO playlists (name, owner_email, songs) VALUES ($1, $2, $3) RETURNING " + playlistColumns,
	)).
		WithArgs("P1", "a@x.com", sqlmock.AnyArg()).
		WillReturnRows(playlistRow(7, "P1", "a@x.com", oneSongArray))

	rec, err := m.Save(context.Background(), KindPlaylist, Record{
		"name":       "P1",
		"ownerEmail": "a@x.com",
		"songs": []any{map[string]any{
			"title": "Xtal", "artist": "Aphex Twin", "year": 1992, "youTubeId": "abc",
		}},
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if got := rec.ID(); got != "7" {
		t.Fatalf("assigned id = %q, want %q", got, "7")
	}

	songs, ok := rec["songs"].([]any)
	if !ok || len(songs) != 1 {
		t.Fatalf("songs = %#v, want one decoded song", rec["songs"])
	}
	song := songs[0].(map[string]any)
	if song["title"] != "Xtal" || song["year"] != float64(1992) {
		t.Fatalf("unexpected song round-trip: %#v", song)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveUpdatesWithIdentity(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE playlists SET name = $1, owner_email = $2, songs = $3, updated_at = now() WHERE id = $4 RETURNING " + playlistColumns,
	)).
		WithArgs("New", "a@x.com", sqlmock.AnyArg(), int64(7)).
		WillReturnRows(playlistRow(7, "New", "a@x.com", "{}"))

	rec, err := m.Save(context.Background(), KindPlaylist, Record{
		"id":         "7",
		"name":       "New",
		"ownerEmail": "a@x.com",
		"songs":      []any{},
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if rec["name"] != "New" {
		t.Fatalf("name = %v, want New", rec["name"])
	}
	if songs := rec["songs"].([]any); len(songs) != 0 {
		t.Fatalf("songs = %#v, want empty", songs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveUpdateMissingRowIsNotFound(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery("UPDATE playlists SET").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_email", "songs", "created_at", "updated_at"}))

	_, err := m.Save(context.Background(), KindPlaylist, Record{
		"id": "99", "name": "X", "ownerEmail": "a@x.com", "songs": []any{},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveMalformedIdentity(t *testing.T) {
	m, _ := newMockPostgres(t)

	_, err := m.Save(context.Background(), KindPlaylist, Record{
		"id": "playlist:abc", "name": "X", "ownerEmail": "a@x.com",
	})
	if !errors.Is(err, ErrMalformedID) {
		t.Fatalf("err = %v, want ErrMalformedID", err)
	}
}

func TestReadOneByID(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT "+playlistColumns+" FROM playlists WHERE id = $1",
	)).
		WithArgs(int64(7)).
		WillReturnRows(playlistRow(7, "P1", "a@x.com", "{}"))

	rec, err := m.ReadOneByID(context.Background(), KindPlaylist, "7")
	if err != nil {
		t.Fatalf("ReadOneByID error: %v", err)
	}
	if rec["ownerEmail"] != "a@x.com" {
		t.Fatalf("ownerEmail = %v", rec["ownerEmail"])
	}
}

func TestReadOneByIDAbsentIsNotFound(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT .+ FROM playlists WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_email", "songs", "created_at", "updated_at"}))

	_, err := m.ReadOneByID(context.Background(), KindPlaylist, "99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReadOneByCriteria(t *testing.T) {
	m, mock := newMockPostgres(t)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT "+userColumns+" FROM users WHERE email = $1 ORDER BY created_at ASC, id ASC LIMIT 1",
	)).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(1), "Ada", "Lovelace", "a@x.com", "hash", now, now))

	rec, err := m.ReadOne(context.Background(), KindUser, Criteria{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("ReadOne error: %v", err)
	}
	if rec.ID() != "1" || rec["firstName"] != "Ada" {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestReadAllEmptyCriteriaMatchesEverything(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT " + playlistColumns + " FROM playlists ORDER BY created_at ASC, id ASC",
	)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_email", "songs", "created_at", "updated_at"}))

	records, err := m.ReadAll(context.Background(), KindPlaylist, nil)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("records = %#v, want empty non-nil slice", records)
	}
}

func TestReadAllUnknownCriteriaField(t *testing.T) {
	m, _ := newMockPostgres(t)

	_, err := m.ReadAll(context.Background(), KindPlaylist, Criteria{"nope": 1})
	if err == nil {
		t.Fatal("expected error for criteria outside the schema")
	}
}

func TestDeleteByIDRemovesRow(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM playlists WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM playlists WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.DeleteByID(context.Background(), KindPlaylist, "7"); err != nil {
		t.Fatalf("DeleteByID error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteByIDAbsentIsNotFound(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM playlists WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := m.DeleteByID(context.Background(), KindPlaylist, "99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// The lookup and the destroy are separate statements. A row that vanishes
// between them must surface as an error, not a silent success.
func TestDeleteByIDConcurrentRemovalFails(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM playlists WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM playlists WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := m.DeleteByID(context.Background(), KindPlaylist, "7")
	if err == nil {
		t.Fatal("expected error when the row was removed between lookup and destroy")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("race must not be reported as ErrNotFound, got %v", err)
	}
}

func TestDeleteByCriteria(t *testing.T) {
	m, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT .+ FROM playlists WHERE owner_email").
		WithArgs("a@x.com").
		WillReturnRows(playlistRow(7, "P1", "a@x.com", "{}"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM playlists WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.Delete(context.Background(), KindPlaylist, Criteria{"ownerEmail": "a@x.com"}); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
