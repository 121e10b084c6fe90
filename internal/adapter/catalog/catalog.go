// Package catalog reads the product catalog from a SQL database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql" // "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx"
	_ "modernc.org/sqlite"             // "sqlite"

	"github.com/mmcdole/harvester/internal/domain"
)

// Defaults match the jd_goods table layout.
const (
	DefaultTable       = "jd_goods"
	DefaultIDColumn    = "ID"
	DefaultCountColumn = "comment_num"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config describes where catalog items live.
type Config struct {
	Driver      string // "pgx", "mysql" or "sqlite"
	DSN         string
	Table       string
	IDColumn    string
	CountColumn string
}

func (c *Config) defaults() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.IDColumn == "" {
		c.IDColumn = DefaultIDColumn
	}
	if c.CountColumn == "" {
		c.CountColumn = DefaultCountColumn
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case "pgx", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported catalog driver %q", c.Driver)
	}
	for _, ident := range []string{c.Table, c.IDColumn, c.CountColumn} {
		if !identRe.MatchString(ident) {
			return fmt.Errorf("invalid SQL identifier %q", ident)
		}
	}
	return nil
}

// SQLCatalog implements domain.CatalogSource over database/sql.
type SQLCatalog struct {
	db        *sql.DB
	owned     bool // Close closes db
	countStmt string
	listStmt  string
}

// Open connects to the configured database and verifies it is reachable.
// Failures wrap domain.ErrConnection.
func Open(ctx context.Context, cfg Config) (*SQLCatalog, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open catalog: %v", domain.ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping catalog: %v", domain.ErrConnection, err)
	}

	c, err := New(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sql.DB, cfg Config) (*SQLCatalog, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	return &SQLCatalog{
		db:        db,
		countStmt: fmt.Sprintf("SELECT count(*) FROM %s", cfg.Table),
		listStmt: fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s LIMIT %s OFFSET %s",
			cfg.IDColumn, cfg.CountColumn, cfg.Table, cfg.IDColumn,
			placeholder(cfg.Driver, 1), placeholder(cfg.Driver, 2)),
	}, nil
}

func placeholder(driver string, n int) string {
	if driver == "pgx" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// CountItems returns the number of rows in the catalog table.
func (c *SQLCatalog) CountItems(ctx context.Context) (int, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, c.countStmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrCatalog, err)
	}
	return int(n), nil
}

// ListItems returns up to limit items ordered by id, starting at offset.
func (c *SQLCatalog) ListItems(ctx context.Context, offset, limit int) ([]domain.CatalogItem, error) {
	rows, err := c.db.QueryContext(ctx, c.listStmt, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list at offset %d: %v", domain.ErrCatalog, offset, err)
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, limit)
	for rows.Next() {
		var (
			id       string
			expected sql.NullInt64
		)
		if err := rows.Scan(&id, &expected); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrCatalog, err)
		}
		item := domain.CatalogItem{ID: strings.TrimSpace(id)}
		if expected.Valid && expected.Int64 > 0 {
			item.ExpectedRecords = int(expected.Int64)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domain.ErrCatalog, err)
	}
	return items, nil
}

func (c *SQLCatalog) Close() error {
	if c.owned {
		return c.db.Close()
	}
	return nil
}
