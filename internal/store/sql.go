package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder syntax and DDL for a SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const sqliteOpenOptions = "?_busy_timeout=5000"

const schemaSQL = `CREATE TABLE IF NOT EXISTS stored_tools (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	source_format  TEXT NOT NULL,
	canonical_json TEXT NOT NULL,
	capabilities   TEXT NOT NULL DEFAULT '[]',
	security_tags  TEXT NOT NULL DEFAULT '[]',
	pii_tags       TEXT NOT NULL DEFAULT '[]',
	created_at     BIGINT NOT NULL
)`

const indexSQL = `CREATE INDEX IF NOT EXISTS stored_tools_source_format_idx ON stored_tools (source_format)`

const selectColumns = `id, name, source_format, canonical_json, capabilities, security_tags, pii_tags, created_at`

var placeholderRE = regexp.MustCompile(`\$(\d+)`)

// SQLRepository stores rows in the stored_tools table of a Postgres or SQLite database.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository wraps an open database. Call EnsureSchema before use.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// OpenPostgres connects through the pgx driver and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenPostgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return open(ctx, db, DialectPostgres)
}

// OpenSQLite opens (creating if needed) a SQLite file and creates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", path+sqliteOpenOptions)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: %w", err)
	}
	return open(ctx, db, DialectSQLite)
}

func open(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	r := NewSQLRepository(db, dialect)
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// EnsureSchema creates the table and index if they do not exist.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

// rebind rewrites $N placeholders to ?N for SQLite.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectSQLite {
		return query
	}
	return placeholderRE.ReplaceAllString(query, "?$1")
}

func (r *SQLRepository) Put(ctx context.Context, t *StoredTool) error {
	caps, err := json.Marshal(nonNil(t.Capabilities))
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	sec, err := json.Marshal(nonNil(t.SecurityTags))
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	pii, err := json.Marshal(nonNil(t.PIITags))
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO stored_tools (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name           = excluded.name,
			source_format  = excluded.source_format,
			canonical_json = excluded.canonical_json,
			capabilities   = excluded.capabilities,
			security_tags  = excluded.security_tags,
			pii_tags       = excluded.pii_tags`),
		t.ID, t.Name, t.SourceFormat, t.CanonicalJSON,
		string(caps), string(sec), string(pii), t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	return nil
}

// Get returns a row by ID, or nil if not found.
func (r *SQLRepository) Get(ctx context.Context, id string) (*StoredTool, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+selectColumns+`
		FROM stored_tools WHERE id = $1`), id)
	t, err := scanStoredTool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return t, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM stored_tools WHERE id = $1`), id)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// List returns rows ordered by created_at. A non-positive limit returns all rows.
func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]*StoredTool, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+selectColumns+`
		FROM stored_tools ORDER BY created_at, id
		LIMIT $1 OFFSET $2`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return collect(rows, "List")
}

func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stored_tools`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) ListBySourceFormat(ctx context.Context, sourceFormat string) ([]*StoredTool, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+selectColumns+`
		FROM stored_tools WHERE source_format = $1
		ORDER BY created_at, id`), sourceFormat)
	if err != nil {
		return nil, fmt.Errorf("ListBySourceFormat: %w", err)
	}
	return collect(rows, "ListBySourceFormat")
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredTool(row rowScanner) (*StoredTool, error) {
	var (
		t                 StoredTool
		caps, sec, pii    string
		createdAtUnixNano int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.SourceFormat, &t.CanonicalJSON,
		&caps, &sec, &pii, &createdAtUnixNano); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(caps), &t.Capabilities); err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	if err := json.Unmarshal([]byte(sec), &t.SecurityTags); err != nil {
		return nil, fmt.Errorf("security_tags: %w", err)
	}
	if err := json.Unmarshal([]byte(pii), &t.PIITags); err != nil {
		return nil, fmt.Errorf("pii_tags: %w", err)
	}
	t.CreatedAt = time.Unix(0, createdAtUnixNano).UTC()
	return &t, nil
}

func collect(rows *sql.Rows, op string) ([]*StoredTool, error) {
	defer rows.Close()

	out := []*StoredTool{}
	for rows.Next() {
		t, err := scanStoredTool(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
