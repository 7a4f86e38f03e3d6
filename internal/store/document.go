package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
)

// SurrealConfig carries the document backend connection parameters.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Pass      string
}

// surrealConn is the slice of the SurrealDB client this backend uses.
// *surrealdb.DB satisfies it; tests substitute a fake.
type surrealConn interface {
	Use(ns, db string) (any, error)
	Signin(vars map[string]any) (any, error)
	Create(thing string, data map[string]any) (any, error)
	Update(what string, data map[string]any) (any, error)
	Query(sql string, vars map[string]any) (any, error)
	Select(what string) (any, error)
	Delete(what string) (any, error)
	Close()
}

var collections = map[Kind]string{
	KindUser:     "user",
	KindPlaylist: "playlist",
}

// Surreal implements Manager on top of SurrealDB, a schema-flexible document
// store. Identity is native (`table:id` things exposed under "_id"), save
// upserts by identity without an existence check, and both timestamps are
// stamped by this layer on every write.
type Surreal struct {
	cfg  SurrealConfig
	conn surrealConn

	dial func(url string) (surrealConn, error)
	now  func() time.Time
}

// NewSurreal returns an unconnected document manager.
func NewSurreal(cfg SurrealConfig) *Surreal {
	return &Surreal{
		cfg: cfg,
		dial: func(url string) (surrealConn, error) {
			return surrealdb.New(url)
		},
		now: time.Now,
	}
}

// Connect dials the database, signs in and selects the configured namespace
// and database. Calling it on an already connected manager is a no-op.
func (m *Surreal) Connect(ctx context.Context) error {
	if m.conn != nil {
		return nil
	}
	if m.cfg.URL == "" {
		return errors.New("surrealdb url is required")
	}

	conn, err := m.dial(m.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial surrealdb: %w", err)
	}
	if _, err := conn.Signin(map[string]any{"user": m.cfg.User, "pass": m.cfg.Pass}); err != nil {
		conn.Close()
		return fmt.Errorf("signin: %w", err)
	}
	if _, err := conn.Use(m.cfg.Namespace, m.cfg.Database); err != nil {
		conn.Close()
		return fmt.Errorf("use %s/%s: %w", m.cfg.Namespace, m.cfg.Database, err)
	}

	m.conn = conn
	return nil
}

// Close drops the websocket connection.
func (m *Surreal) Close() error {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	return nil
}

// Save creates a fresh document when the record has no identity and replaces
// the document contents in place when it does. Replacement is a full-document
// write resolved by identity, last writer wins.
func (m *Surreal) Save(ctx context.Context, kind Kind, rec Record) (Record, error) {
	table, ok := collections[kind]
	if !ok {
		return nil, unknownKind(kind)
	}

	data := documentFields(rec)
	now := m.now().UTC()
	if _, ok := data["createdAt"]; !ok {
		data["createdAt"] = now
	}
	data["updatedAt"] = now

	if id := rec.ID(); id != "" {
		if err := checkThingID(table, id); err != nil {
			return nil, err
		}
		res, err := m.conn.Update(id, data)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", kind, err)
		}
		return documentRecord(res)
	}

	res, err := m.conn.Create(table, data)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return documentRecord(res)
}

// ReadOneByID resolves a single document by its `table:id` thing.
func (m *Surreal) ReadOneByID(ctx context.Context, kind Kind, id string) (Record, error) {
	table, ok := collections[kind]
	if !ok {
		return nil, unknownKind(kind)
	}
	if err := checkThingID(table, id); err != nil {
		return nil, err
	}

	res, err := m.conn.Select(id)
	if err != nil {
		// The client reports an empty result for a thing id as a
		// permission error; that is this backend's "no such record".
		var perm surrealdb.PermissionError
		if errors.As(err, &perm) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	return documentRecord(res)
}

// ReadOne returns the first document matching the criteria.
func (m *Surreal) ReadOne(ctx context.Context, kind Kind, criteria Criteria) (Record, error) {
	records, err := m.query(ctx, kind, criteria, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// ReadAll returns every document matching the criteria, oldest first.
func (m *Surreal) ReadAll(ctx context.Context, kind Kind, criteria Criteria) ([]Record, error) {
	return m.query(ctx, kind, criteria, 0)
}

// DeleteByID removes a document by identity. Absence is an error, matching
// the interface contract rather than the store's silent delete.
func (m *Surreal) DeleteByID(ctx context.Context, kind Kind, id string) error {
	if _, err := m.ReadOneByID(ctx, kind, id); err != nil {
		return err
	}
	if _, err := m.conn.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

// Delete removes the first document matching the criteria.
func (m *Surreal) Delete(ctx context.Context, kind Kind, criteria Criteria) error {
	rec, err := m.ReadOne(ctx, kind, criteria)
	if err != nil {
		return err
	}
	if _, err := m.conn.Delete(rec.ID()); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

func (m *Surreal) query(ctx context.Context, kind Kind, criteria Criteria, limit int) ([]Record, error) {
	table, ok := collections[kind]
	if !ok {
		return nil, unknownKind(kind)
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM type::table($tb)")
	vars := map[string]any{"tb": table}

	if len(criteria) > 0 {
		clauses := make([]string, 0, len(criteria))
		i := 0
		for field, value := range criteria {
			if !isWordField(field) {
				return nil, fmt.Errorf("criteria field %q is not part of the %s schema", field, kind)
			}
			name := fmt.Sprintf("w%d", i)
			clauses = append(clauses, fmt.Sprintf("%s = $%s", field, name))
			vars[name] = value
			i++
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	sb.WriteString(" ORDER BY createdAt ASC, id ASC")
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	res, err := m.conn.Query(sb.String(), vars)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	return queryRecords(res)
}

// documentFields strips identity keys from a record so the remaining fields
// can be written as document content.
func documentFields(rec Record) map[string]any {
	data := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "_id" || k == "id" {
			continue
		}
		data[k] = v
	}
	return data
}

// documentRecord normalizes a single-object response into a Record carrying
// its identity under "_id".
func documentRecord(res any) (Record, error) {
	obj, err := firstObject(res)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(obj))
	for k, v := range obj {
		if k == "id" {
			rec["_id"] = v
			continue
		}
		rec[k] = v
	}
	return rec, nil
}

func firstObject(res any) (map[string]any, error) {
	switch v := res.(type) {
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, ErrNotFound
		}
		if obj, ok := v[0].(map[string]any); ok {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("unexpected response shape %T", res)
}

// queryRecords unwraps the per-statement envelope of a query response.
func queryRecords(res any) ([]Record, error) {
	statements, ok := res.([]any)
	if !ok || len(statements) == 0 {
		return nil, fmt.Errorf("unexpected query response shape %T", res)
	}
	stmt, ok := statements[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected query statement shape %T", statements[0])
	}
	if status, _ := stmt["status"].(string); status != "" && status != "OK" {
		return nil, fmt.Errorf("query failed: %v", stmt["result"])
	}

	rows, ok := stmt["result"].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected query result shape %T", stmt["result"])
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row shape %T", row)
		}
		rec, err := documentRecord(obj)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// checkThingID rejects identities that are not `table:id` things of the
// expected table. Absent records are never an id error, only shape is.
func checkThingID(table, id string) error {
	prefix, _, ok := strings.Cut(id, ":")
	if !ok || prefix != table {
		return fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return nil
}

func isWordField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
