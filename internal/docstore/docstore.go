// Package docstore is a small realtime-database style JSON tree persisted in
// SQLite. Values are addressed by slash-separated paths; objects are stored
// flattened so that any subtree can be read, replaced or merged.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/furrow/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS doc_nodes (
	path       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Op names the kind of write that produced a Change.
type Op string

const (
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Change describes a committed write.
type Change struct {
	Path string
	Op   Op
}

// Store is the document tree. It is safe for concurrent use.
type Store struct {
	conn *sql.DB

	mu        sync.RWMutex
	listeners []func(Change)
}

// Open opens (or creates) the SQLite database at dsn and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// OnChange registers fn to be called after every committed write.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	ls := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range ls {
		fn(c)
	}
}

// Get returns the JSON value at path. A missing path yields an error
// wrapping apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := cleanPath(path, true)
	if err != nil {
		return nil, err
	}
	raw, err := s.read(ctx, p)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("docstore: get %s: %w", p, apperr.ErrNotFound)
	}
	return raw, nil
}

// GetInto decodes the value at path into v.
func (s *Store) GetInto(ctx context.Context, path string, v any) error {
	raw, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	return nil
}

// Exists reports whether anything is stored at or below path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	p, err := cleanPath(path, true)
	if err != nil {
		return false, err
	}
	lo, hi := subtreeRange(p)
	var n int
	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM doc_nodes WHERE path = ? OR (path >= ? AND path < ?)`, p, lo, hi,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("docstore: exists %s: %w", p, err)
	}
	return n > 0, nil
}

// Children returns the immediate children of path keyed by name. A missing
// path yields an empty map.
func (s *Store) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	p, err := cleanPath(path, true)
	if err != nil {
		return nil, err
	}
	raw, err := s.read(ctx, p)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// A leaf has no children.
		return map[string]json.RawMessage{}, nil
	}
	return out, nil
}

// Set replaces the value at path. A nil value removes it.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	p, err := cleanPath(path, false)
	if err != nil {
		return err
	}
	val, err := normalize(v)
	if err != nil {
		return err
	}
	if err := s.inTx(ctx, func(tx *sql.Tx) error { return setTx(ctx, tx, p, val) }); err != nil {
		return err
	}
	op := OpSet
	if val == nil {
		op = OpRemove
	}
	s.notify(Change{Path: p, Op: op})
	return nil
}

// Update merges fields into the object at path. Keys may themselves be
// relative paths; a nil field value removes that child.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	p, err := cleanPath(path, false)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	type write struct {
		path string
		val  any
	}
	writes := make([]write, 0, len(fields))
	for k, v := range fields {
		child, err := cleanPath(k, false)
		if err != nil {
			return err
		}
		val, err := normalize(v)
		if err != nil {
			return err
		}
		writes = append(writes, write{path: p + "/" + child, val: val})
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, w := range writes {
			if err := setTx(ctx, tx, w.path, w.val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(Change{Path: p, Op: OpUpdate})
	return nil
}

// Push stores v under a new time-ordered child key of path and returns the key.
func (s *Store) Push(ctx context.Context, path string, v any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("docstore: push key: %w", err)
	}
	key := id.String()
	if err := s.Set(ctx, strings.Trim(path, "/")+"/"+key, v); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the value at path and everything below it.
func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	return nil
}

// read assembles the subtree rooted at p, or returns nil when empty.
func (s *Store) read(ctx context.Context, p string) (json.RawMessage, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if p == "" {
		rows, err = s.conn.QueryContext(ctx, `SELECT path, value FROM doc_nodes ORDER BY path`)
	} else {
		lo, hi := subtreeRange(p)
		rows, err = s.conn.QueryContext(ctx,
			`SELECT path, value FROM doc_nodes WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`, p, lo, hi)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", p, err)
	}
	defer rows.Close()

	root := map[string]any{}
	found := false
	for rows.Next() {
		var rowPath, value string
		if err := rows.Scan(&rowPath, &value); err != nil {
			return nil, fmt.Errorf("docstore: scan: %w", err)
		}
		found = true
		if rowPath == p {
			return json.RawMessage(value), nil
		}
		rel := rowPath
		if p != "" {
			rel = strings.TrimPrefix(rowPath, p+"/")
		}
		insert(root, strings.Split(rel, "/"), json.RawMessage(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", p, err)
	}
	if !found {
		return nil, nil
	}
	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %s: %w", p, err)
	}
	return out, nil
}

func insert(m map[string]any, segs []string, leaf json.RawMessage) {
	for len(segs) > 1 {
		next, ok := m[segs[0]].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[segs[0]] = next
		}
		m, segs = next, segs[1:]
	}
	m[segs[0]] = leaf
}

func setTx(ctx context.Context, tx *sql.Tx, p string, val any) error {
	lo, hi := subtreeRange(p)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM doc_nodes WHERE path = ? OR (path >= ? AND path < ?)`, p, lo, hi); err != nil {
		return fmt.Errorf("docstore: clear %s: %w", p, err)
	}
	if val == nil {
		return nil
	}
	// A leaf stored at an ancestor would shadow the new subtree.
	segs := strings.Split(p, "/")
	for i := 1; i < len(segs); i++ {
		if _, err := tx.ExecContext(ctx, `DELETE FROM doc_nodes WHERE path = ?`, strings.Join(segs[:i], "/")); err != nil {
			return fmt.Errorf("docstore: clear ancestor: %w", err)
		}
	}
	leaves := map[string]string{}
	if err := flatten(p, val, leaves); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO doc_nodes (path, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("docstore: prepare insert: %w", err)
	}
	defer stmt.Close()
	for path, value := range leaves {
		if _, err := stmt.ExecContext(ctx, path, value); err != nil {
			return fmt.Errorf("docstore: insert %s: %w", path, err)
		}
	}
	return nil
}

// flatten writes one leaf per non-object value. Empty objects and nulls
// store nothing.
func flatten(p string, v any, out map[string]string) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range t {
			if err := validSegment(k); err != nil {
				return err
			}
			if err := flatten(p+"/"+k, child, out); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("docstore: encode %s: %w", p, err)
		}
		out[p] = string(b)
		return nil
	}
}

// normalize round-trips v through JSON so structs become maps.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Invalid("value is not JSON encodable")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("docstore: normalize: %w", err)
	}
	return out, nil
}

// subtreeRange returns bounds covering every path strictly below p.
// '0' is the byte after '/'.
func subtreeRange(p string) (string, string) {
	return p + "/", p + "0"
}

func cleanPath(path string, allowRoot bool) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		if allowRoot {
			return "", nil
		}
		return "", apperr.Invalid("docstore: path is required")
	}
	for _, seg := range strings.Split(p, "/") {
		if err := validSegment(seg); err != nil {
			return "", err
		}
	}
	return p, nil
}

func validSegment(seg string) error {
	if seg == "" {
		return apperr.Invalid("docstore: empty path segment")
	}
	if strings.ContainsAny(seg, ".#$[]/") {
		return apperr.Invalid(fmt.Sprintf("docstore: invalid key %q", seg))
	}
	return nil
}

// SortedKeys returns the keys of m in ascending order. Push keys sort by
// creation time.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
