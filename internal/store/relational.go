package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// tableSpec describes how a resource kind maps onto a Postgres table:
// canonical field names paired with their columns, in insert order.
type tableSpec struct {
	table   string
	fields  []string
	columns []string
}

// The relational side keeps no forward playlist list on users. Ownership is
// the backward owner_email reference, and the schema-level cascade removes a
// user's playlists when the user row goes away.
var tables = map[Kind]tableSpec{
	KindUser: {
		table:   "users",
		fields:  []string{"firstName", "lastName", "email", "passwordHash"},
		columns: []string{"first_name", "last_name", "email", "password_hash"},
	},
	KindPlaylist: {
		table:   "playlists",
		fields:  []string{"name", "ownerEmail", "songs"},
		columns: []string{"name", "owner_email", "songs"},
	},
}

const relationalSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE CHECK (email <> ''),
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS playlists (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL CHECK (name <> ''),
	owner_email TEXT NOT NULL CHECK (owner_email <> '')
	            REFERENCES users (email) ON DELETE CASCADE,
	songs       JSON[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres implements Manager on top of a relational store. Postgres offers
// no generic upsert-by-identity through this layer, so Save branches on
// identity presence, and deletes are a read-then-destroy pair with no
// transaction around the two steps.
type Postgres struct {
	dsn string
	db  *sql.DB
}

// NewPostgres returns an unconnected relational manager for the given DSN.
func NewPostgres(dsn string) *Postgres {
	return &Postgres{dsn: dsn}
}

// Connect opens the database, waits for it to respond and creates the
// schema. Calling it on an already connected manager is a no-op.
func (m *Postgres) Connect(ctx context.Context) error {
	if m.db != nil {
		return nil
	}

	db, err := sql.Open("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	const (
		pingTimeout    = 5 * time.Second
		maxWait        = 30 * time.Second
		initialBackoff = 500 * time.Millisecond
		maxBackoff     = 5 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	var lastErr error

	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			break
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			_ = db.Close()
			return fmt.Errorf("ping database: %w", lastErr)
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if _, err := db.ExecContext(ctx, relationalSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	m.db = db
	return nil
}

// Close releases the connection pool.
func (m *Postgres) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Save inserts when the record carries no identity and updates in place when
// it does. The updated row is read back through RETURNING so callers see the
// stored state, timestamps included.
func (m *Postgres) Save(ctx context.Context, kind Kind, rec Record) (Record, error) {
	spec, ok := tables[kind]
	if !ok {
		return nil, unknownKind(kind)
	}

	args := make([]any, 0, len(spec.fields))
	for _, field := range spec.fields {
		arg, err := encodeValue(field, rec[field])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", kind, field, err)
		}
		args = append(args, arg)
	}

	if id := rec.ID(); id != "" {
		numID, err := parseRowID(id)
		if err != nil {
			return nil, err
		}

		sets := make([]string, len(spec.columns))
		for i, col := range spec.columns {
			sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		}
		query := fmt.Sprintf(
			"UPDATE %s SET %s, updated_at = now() WHERE id = $%d RETURNING %s",
			spec.table, strings.Join(sets, ", "), len(spec.columns)+1, selectColumns(spec),
		)
		args = append(args, numID)

		updated, err := scanRecord(spec, m.db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", kind, err)
		}
		return updated, nil
	}

	placeholders := make([]string, len(spec.columns))
	for i := range spec.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		spec.table, strings.Join(spec.columns, ", "), strings.Join(placeholders, ", "), selectColumns(spec),
	)

	created, err := scanRecord(spec, m.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	return created, nil
}

// ReadOneByID fetches a single row by primary key.
func (m *Postgres) ReadOneByID(ctx context.Context, kind Kind, id string) (Record, error) {
	spec, ok := tables[kind]
	if !ok {
		return nil, unknownKind(kind)
	}
	numID, err := parseRowID(id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns(spec), spec.table)
	rec, err := scanRecord(spec, m.db.QueryRowContext(ctx, query, numID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return rec, nil
}

// ReadOne fetches the first row matching the criteria.
func (m *Postgres) ReadOne(ctx context.Context, kind Kind, criteria Criteria) (Record, error) {
	spec, ok := tables[kind]
	if !ok {
		return nil, unknownKind(kind)
	}
	where, args, err := buildWhere(spec, criteria)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY created_at ASC, id ASC LIMIT 1",
		selectColumns(spec), spec.table, where,
	)
	rec, err := scanRecord(spec, m.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	return rec, nil
}

// ReadAll fetches every row matching the criteria, oldest first. Criteria is
// optional; nothing matching yields an empty slice.
func (m *Postgres) ReadAll(ctx context.Context, kind Kind, criteria Criteria) ([]Record, error) {
	spec, ok := tables[kind]
	if !ok {
		return nil, unknownKind(kind)
	}
	where, args, err := buildWhere(spec, criteria)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY created_at ASC, id ASC",
		selectColumns(spec), spec.table, where,
	)
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(spec, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return records, nil
}

// DeleteByID looks the row up and then destroys it. The two steps are not
// atomic: a row removed by a concurrent caller between them makes the
// destroy fail, and that failure is reported, never swallowed.
func (m *Postgres) DeleteByID(ctx context.Context, kind Kind, id string) error {
	spec, ok := tables[kind]
	if !ok {
		return unknownKind(kind)
	}
	numID, err := parseRowID(id)
	if err != nil {
		return err
	}

	var found int64
	err = m.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE id = $1", spec.table), numID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", kind, err)
	}

	return m.destroy(ctx, spec, kind, found)
}

// Delete resolves the first row matching the criteria and destroys it, with
// the same non-atomic two-step behavior as DeleteByID.
func (m *Postgres) Delete(ctx context.Context, kind Kind, criteria Criteria) error {
	spec, ok := tables[kind]
	if !ok {
		return unknownKind(kind)
	}
	rec, err := m.ReadOne(ctx, kind, criteria)
	if err != nil {
		return err
	}
	numID, err := parseRowID(rec.ID())
	if err != nil {
		return err
	}
	return m.destroy(ctx, spec, kind, numID)
}

func (m *Postgres) destroy(ctx context.Context, spec tableSpec, kind Kind, id int64) error {
	res, err := m.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", spec.table), id,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s %d: row removed concurrently", kind, id)
	}
	return nil
}

func selectColumns(spec tableSpec) string {
	return "id, " + strings.Join(spec.columns, ", ") + ", created_at, updated_at"
}

func buildWhere(spec tableSpec, criteria Criteria) (string, []any, error) {
	if len(criteria) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(criteria))
	args := make([]any, 0, len(criteria))
	for _, field := range spec.fields {
		value, ok := criteria[field]
		if !ok {
			continue
		}
		arg, err := encodeValue(field, value)
		if err != nil {
			return "", nil, fmt.Errorf("encode criteria %s: %w", field, err)
		}
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", spec.columns[indexOf(spec.fields, field)], len(args)))
	}
	if len(clauses) != len(criteria) {
		return "", nil, fmt.Errorf("criteria references fields outside the %s schema", spec.table)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func indexOf(fields []string, field string) int {
	for i, f := range fields {
		if f == field {
			return i
		}
	}
	return -1
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row into canonical Record form. The songs column is a
// JSON[] array: each element is decoded back into its semi-structured shape.
func scanRecord(spec tableSpec, row rowScanner) (Record, error) {
	var (
		id               int64
		created, updated time.Time
		songsRaw         []string
	)
	texts := make([]string, len(spec.fields))

	dest := make([]any, 0, len(spec.fields)+3)
	dest = append(dest, &id)
	for i, field := range spec.fields {
		if field == "songs" {
			dest = append(dest, pq.Array(&songsRaw))
		} else {
			dest = append(dest, &texts[i])
		}
	}
	dest = append(dest, &created, &updated)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec := Record{
		"id":        strconv.FormatInt(id, 10),
		"createdAt": created,
		"updatedAt": updated,
	}
	for i, field := range spec.fields {
		if field == "songs" {
			songs, err := decodeSongs(songsRaw)
			if err != nil {
				return nil, err
			}
			rec[field] = songs
		} else {
			rec[field] = texts[i]
		}
	}
	return rec, nil
}

func decodeSongs(raw []string) ([]any, error) {
	songs := make([]any, 0, len(raw))
	for _, entry := range raw {
		var song any
		if err := json.Unmarshal([]byte(entry), &song); err != nil {
			return nil, fmt.Errorf("decode song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, nil
}

func encodeValue(field string, value any) (any, error) {
	if field != "songs" {
		return value, nil
	}

	var list []any
	switch v := value.(type) {
	case nil:
	case []any:
		list = v
	default:
		return nil, fmt.Errorf("songs must be a list, got %T", value)
	}

	encoded := make([]string, 0, len(list))
	for _, song := range list {
		b, err := json.Marshal(song)
		if err != nil {
			return nil, fmt.Errorf("encode song: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	return pq.Array(encoded), nil
}

func parseRowID(id string) (int64, error) {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return numID, nil
}
