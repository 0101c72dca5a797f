package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"winsync/internal/backends/items"
	"winsync/internal/types"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens or creates the SQLite database at path and ensures the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS items (
    list_id TEXT NOT NULL,
    pos INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (list_id, pos)
);
CREATE INDEX IF NOT EXISTS idx_items_item_id ON items(list_id, item_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Provider serves a list from the items table. Filters have the form "field=value" and
// match top-level JSON fields; sort entries are field names, "-" prefixed for descending.
// Without a sort, rows come in position order.
type Provider struct {
	db      *sql.DB
	listID  string
	idField string
}

func NewProvider(db *sql.DB, listID, idField string) *Provider {
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Provider{db: db, listID: listID, idField: idField}
}

func (p *Provider) Size(ctx context.Context, q types.Query) (int, error) {
	where, args, err := p.where(q.Filter)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE "+where, args...).Scan(&n)
	return n, err
}

func (p *Provider) Fetch(ctx context.Context, q types.Query) ([]types.Item, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	where, args, err := p.where(q.Filter)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(q.Sort)
	if err != nil {
		return nil, err
	}
	query := "SELECT body FROM items WHERE " + where + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	rows, err := p.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]types.Item, 0, q.Limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		item, err := items.Decode([]byte(body))
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func (p *Provider) ItemID(item types.Item) string {
	return items.ID(item, p.idField)
}

// PutItems writes rows at positions offset, offset+1, ... in one transaction.
func (p *Provider) PutItems(ctx context.Context, offset int, rows []types.Item) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO items (list_id, pos, item_id, body, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		body, err := items.Encode(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.listID, offset+i, p.ItemID(row), string(body)); err != nil {
			return fmt.Errorf("put row %d: %w", offset+i, err)
		}
	}
	return tx.Commit()
}

// Truncate removes rows at position n and beyond.
func (p *Provider) Truncate(ctx context.Context, n int) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM items WHERE list_id = ? AND pos >= ?`, p.listID, n)
	return err
}

// CheckQuery reports whether q is a field=value filter and a sort over plain field names.
func CheckQuery(q types.QueryConfig) error {
	if _, _, err := (&Provider{}).where(q.Filter); err != nil {
		return err
	}
	_, err := orderBy(q.Sort)
	return err
}

func (p *Provider) where(filter string) (string, []any, error) {
	clause := "list_id = ?"
	args := []any{p.listID}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return clause, args, nil
	}
	field, value, ok := strings.Cut(filter, "=")
	field = strings.TrimSpace(field)
	if !ok || !fieldPattern.MatchString(field) {
		return "", nil, types.Err(types.ErrInvalidBackend, nil, "sqlite filter %q: want field=value", filter)
	}
	value = strings.TrimSpace(value)
	clause += " AND json_extract(body, '$." + field + "') = ?"
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return clause, append(args, f), nil
	}
	return clause, append(args, value), nil
}

func orderBy(sort []string) (string, error) {
	if len(sort) == 0 {
		return "pos", nil
	}
	terms := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		dir := "ASC"
		if strings.HasPrefix(s, "-") {
			dir = "DESC"
			s = s[1:]
		}
		if !fieldPattern.MatchString(s) {
			return "", types.Err(types.ErrInvalidBackend, nil, "sqlite sort field %q", s)
		}
		terms = append(terms, "json_extract(body, '$."+s+"') "+dir)
	}
	return strings.Join(append(terms, "pos"), ", "), nil
}
